package models_test

import (
	"context"
	"path/filepath"
	"testing"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/models"
	"github.com/shopspring/decimal"
)

// setupStore opens a fresh sqlite store in a temp dir and seeds a branch
// with one cashier. Each test gets its own file; no docker, no network.
func setupStore(t *testing.T) (context.Context, models.Session) {
	t.Helper()
	t.Setenv("POS_DB_PATH", filepath.Join(t.TempDir(), "pos.db"))
	config.ConnectDatabase()
	models.MigrateTable()

	ctx := context.Background()
	branch, err := models.CreateBranch(ctx, &models.NewBranch{Name: "Test Branch"})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	session := models.Session{BranchId: branch.ID}
	user, err := models.CreateUser(ctx, session, &models.NewUser{
		Name: "Test Cashier",
		Role: models.UserRoleCashier,
		Pin:  "1234",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	session.UserId = user.ID
	return ctx, session
}

func seedProduct(t *testing.T, ctx context.Context, session models.Session, name string, price int64, stock int) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(ctx, session, &models.NewProduct{
		Name:      name,
		Sku:       "SKU-" + name,
		SellPrice: decimal.NewFromInt(price),
		CostPrice: decimal.NewFromInt(price / 2),
		Stock:     stock,
	})
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", name, err)
	}
	return product
}

func openShift(t *testing.T, ctx context.Context, session models.Session, openingCash int64) *models.Shift {
	t.Helper()
	shift, err := models.OpenShift(ctx, session, decimal.NewFromInt(openingCash))
	if err != nil {
		t.Fatalf("OpenShift: %v", err)
	}
	return shift
}
