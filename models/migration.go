package models

import (
	"log"

	"bitbucket.org/meridianassets/invest_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&LedgerAccount{}, &LedgerEntry{},
		&AnchorRecord{}, &BlockchainOp{},
		&ReconciliationRun{}, &ReconciliationIssue{},
		&Subscription{}, &Distribution{}, &Tranche{}, &Application{},
		&WebhookReceipt{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
