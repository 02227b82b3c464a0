package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"bitbucket.org/meridianassets/invest_backend/models"
	"bitbucket.org/meridianassets/invest_backend/utils"
	"gorm.io/gorm"
)

// ApplicationEvent is the normalized identity-provider verdict handed in by
// the webhook layer.
type ApplicationEvent struct {
	Provider      string `json:"provider" validate:"required"`
	Reference     string `json:"reference" validate:"required"`
	EventType     string `json:"event_type" validate:"required"`
	ApplicationId int    `json:"application_id" validate:"required"`
	WalletAddress string `json:"wallet_address"`
	TokenAddress  string `json:"token_address"`
	ChainId       string `json:"chain_id"`
	RawBody       []byte `json:"-"`
}

// ProcessApplicationApproved moves the application InReview -> Approved,
// anchors the verdict, and, when the investor wallet is known, queues the
// on-chain whitelist operation.
func ProcessApplicationApproved(ctx context.Context, db *gorm.DB, event ApplicationEvent) error {
	if err := validate.Struct(event); err != nil {
		return utils.NewValidationError("event", err.Error())
	}

	return RunInUnit(ctx, db, func(tx *gorm.DB) error {
		if err := beginReceipt(ctx, tx, event.Provider, event.Reference, event.EventType, event.RawBody); err != nil {
			if errors.Is(err, utils.ErrDuplicateEvent) {
				return nil
			}
			return err
		}

		app, err := models.UpdateApplicationStatus(ctx, tx, event.ApplicationId, models.ApplicationStatusApproved, event.Provider)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]string{
			"applicant_ref": app.ApplicantRef,
			"provider_ref":  event.Reference,
		})
		if err != nil {
			return err
		}
		if _, err := CreateAnchor(ctx, tx, "Application", app.ID, models.AnchorEventApplicationApproved, payload); err != nil {
			return err
		}

		if event.WalletAddress != "" && event.TokenAddress != "" {
			if _, err := CreateBlockchainOp(ctx, tx, models.BlockchainOpTypeWhitelist, "Application", app.ID, event.ChainId, models.WhitelistPayload{
				TokenAddress:    event.TokenAddress,
				InvestorAddress: event.WalletAddress,
				Allowed:         true,
			}); err != nil {
				return err
			}
		}

		return markReceiptProcessed(ctx, tx, event.Provider, event.Reference, event.EventType, "application approved")
	})
}

// ProcessApplicationRejected records the rejection; nothing reaches the chain.
func ProcessApplicationRejected(ctx context.Context, db *gorm.DB, event ApplicationEvent) error {
	if err := validate.Struct(event); err != nil {
		return utils.NewValidationError("event", err.Error())
	}
	return RunInUnit(ctx, db, func(tx *gorm.DB) error {
		if err := beginReceipt(ctx, tx, event.Provider, event.Reference, event.EventType, event.RawBody); err != nil {
			if errors.Is(err, utils.ErrDuplicateEvent) {
				return nil
			}
			return err
		}
		if _, err := models.UpdateApplicationStatus(ctx, tx, event.ApplicationId, models.ApplicationStatusRejected, event.Provider); err != nil {
			return err
		}
		return markReceiptProcessed(ctx, tx, event.Provider, event.Reference, event.EventType, "application rejected")
	})
}
