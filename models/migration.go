package models

import (
	"log"

	"bitbucket.org/shweretail/posledger_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Branch{}, &User{}, &Settings{},
		&Product{}, &Customer{}, &Promotion{},
		&Transaction{}, &TransactionItem{}, &TransactionNumberSeries{},
		&HeldBill{}, &CreditEntry{},
		&Shift{},
		&SyncQueueEntry{}, &SyncState{}, &SyncRun{}, &SyncConflict{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
