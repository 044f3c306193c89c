package display

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// The customer-facing display mirrors the register cart over a redis
// channel. Publishing is fire and forget: a dead display must never block
// or fail a sale.

const (
	EventCartUpdated      = "cart_updated"
	EventPaymentCompleted = "payment_completed"
	EventCleared          = "cleared"
)

type Event struct {
	Type      string          `json:"type"`
	BranchId  string          `json:"branch_id"`
	Lines     []Line          `json:"lines,omitempty"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	Change    decimal.Decimal `json:"change"`
	ReceiptNo string          `json:"receipt_no,omitempty"`
	At        time.Time       `json:"at"`
}

type Line struct {
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func channelName(branchId string) string {
	return "display:" + branchId
}

func publish(ctx context.Context, event Event) {
	rdb := config.GetRedisDB()
	if rdb == nil {
		return
	}
	event.At = time.Now()
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = rdb.Publish(ctx, channelName(event.BranchId), payload).Err()
}

// PublishCart pushes the in-progress cart to the display.
func PublishCart(ctx context.Context, branchId string, lines []Line, subtotal, discount, total decimal.Decimal) {
	publish(ctx, Event{
		Type:     EventCartUpdated,
		BranchId: branchId,
		Lines:    lines,
		Subtotal: subtotal,
		Discount: discount,
		Total:    total,
	})
}

// PublishPayment shows the completed sale with change due.
func PublishPayment(ctx context.Context, txn *models.Transaction) {
	lines := make([]Line, len(txn.Items))
	for i, item := range txn.Items {
		lines[i] = Line{
			Name:      item.ProductName,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
	}
	publish(ctx, Event{
		Type:      EventPaymentCompleted,
		BranchId:  txn.BranchId,
		Lines:     lines,
		Subtotal:  txn.Subtotal,
		Discount:  txn.Discount,
		Total:     txn.Total,
		Change:    txn.ChangeGiven,
		ReceiptNo: txn.ReceiptNo,
	})
}

// PublishCleared blanks the display between customers.
func PublishCleared(ctx context.Context, branchId string) {
	publish(ctx, Event{Type: EventCleared, BranchId: branchId})
}

// Subscribe returns the raw pub/sub subscription for a display process.
// Returns nil when redis is not configured.
func Subscribe(ctx context.Context, branchId string) *redis.PubSub {
	rdb := config.GetRedisDB()
	if rdb == nil {
		return nil
	}
	return rdb.Subscribe(ctx, channelName(branchId))
}
