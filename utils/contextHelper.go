package utils

import (
	"context"

	"bitbucket.org/meridianassets/invest_backend/appctx"
	"github.com/google/uuid"
)

var (
	ContextKeyOperatorName  = appctx.ContextKeyOperatorName
	ContextKeyProvider      = appctx.ContextKeyProvider
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetOperatorNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyOperatorName)
}

func GetProviderFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyProvider)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetOperatorInContext(ctx context.Context, operatorName string) context.Context {
	return appctx.Set(ctx, ContextKeyOperatorName, operatorName)
}

func SetProviderInContext(ctx context.Context, provider string) context.Context {
	return appctx.Set(ctx, ContextKeyProvider, provider)
}

// SetCorrelationIdInContext keeps an incoming correlation id when present and
// mints one otherwise, so worker and webhook log lines can be stitched together.
func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	if correlationId == "" {
		correlationId = uuid.NewString()
	}
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
