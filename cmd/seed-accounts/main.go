// seed-accounts creates or updates the base chart of accounts the posting
// workflows reference by code. The event path never creates accounts; this
// tool (or an admin action) owns their lifecycle.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-accounts
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/meridianassets/invest_backend/config"
	"bitbucket.org/meridianassets/invest_backend/models"
	"gorm.io/gorm"
)

var baseAccounts = []models.LedgerAccount{
	{Code: "ESCROW:CASH", Name: "Escrow Cash", AccountType: models.AccountTypeAsset, Currency: "USD"},
	{Code: "DISTRIBUTION:CASH", Name: "Distribution Cash", AccountType: models.AccountTypeAsset, Currency: "USD"},
	{Code: "DISTRIBUTION:PAYABLE", Name: "Distributions Payable", AccountType: models.AccountTypeLiability, Currency: "USD"},
	{Code: "TRANCHE:SUBSCRIBED", Name: "Tranche Subscribed Capital", AccountType: models.AccountTypeLiability, Currency: "USD"},
	{Code: "FEES:PLATFORM", Name: "Platform Fees", AccountType: models.AccountTypeRevenue, Currency: "USD"},
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	models.MigrateTable()

	for _, account := range baseAccounts {
		var existing models.LedgerAccount
		err := db.WithContext(ctx).Model(&models.LedgerAccount{}).Where("code = ?", account.Code).First(&existing).Error
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				fmt.Fprintf(os.Stderr, "failed to lookup account %s: %v\n", account.Code, err)
				os.Exit(1)
			}
			account.IsActive = true
			if err := db.WithContext(ctx).Create(&account).Error; err != nil {
				fmt.Fprintf(os.Stderr, "failed to create account %s: %v\n", account.Code, err)
				os.Exit(1)
			}
			fmt.Printf("created account %s (%s)\n", account.Code, account.AccountType)
			continue
		}
		if err := db.WithContext(ctx).Model(&models.LedgerAccount{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"name":         account.Name,
				"account_type": account.AccountType,
				"currency":     account.Currency,
				"is_active":    true,
				"deleted_at":   nil,
			}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update account %s: %v\n", account.Code, err)
			os.Exit(1)
		}
		fmt.Printf("updated account %s (%s)\n", account.Code, account.AccountType)
	}
}
