// syncd runs the sync engine without the register HTTP surface. It is meant
// for a back-office box that holds a store copy but never sells: it drains
// nothing of its own and keeps the local store current by pulling.
//
// Usage:
//   POS_BRANCH_ID=... SYNC_REMOTE_URL=... SYNC_SECRET=... go run ./cmd/syncd
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/models"
	"bitbucket.org/shweretail/posledger_backend/syncengine"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()

	branchId := strings.TrimSpace(os.Getenv("POS_BRANCH_ID"))
	if branchId == "" {
		logger.WithFields(logrus.Fields{"field": "syncd"}).Fatal("POS_BRANCH_ID is required")
	}

	client, err := syncengine.NewRemoteClient()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "syncd"}).Fatal("remote client: " + err.Error())
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	config.ConnectDatabase()
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	engine := syncengine.NewEngine(client, logger, branchId)
	engine.SetOnline(true)
	engine.Run(sigCtx)
}
