package display_test

import (
	"context"
	"testing"

	"bitbucket.org/shweretail/posledger_backend/display"
	"bitbucket.org/shweretail/posledger_backend/models"
	"github.com/shopspring/decimal"
)

// Publishing must be safe with no redis configured; a register without a
// customer display still sells.
func TestPublish_NoRedisIsNoOp(t *testing.T) {
	ctx := context.Background()

	display.PublishCart(ctx, "b1",
		[]display.Line{{Name: "Coffee", Qty: 1, UnitPrice: decimal.NewFromInt(3500), LineTotal: decimal.NewFromInt(3500)}},
		decimal.NewFromInt(3500), decimal.Zero, decimal.NewFromInt(3500))

	display.PublishPayment(ctx, &models.Transaction{
		BranchId:  "b1",
		ReceiptNo: "POS-000001",
		Items: []models.TransactionItem{
			{ProductName: "Coffee", Qty: 1, UnitPrice: decimal.NewFromInt(3500), LineTotal: decimal.NewFromInt(3500)},
		},
	})

	display.PublishCleared(ctx, "b1")

	if sub := display.Subscribe(ctx, "b1"); sub != nil {
		t.Fatal("expected nil subscription without redis")
	}
}
