package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type NewRefund struct {
	TransactionId string `json:"transaction_id" validate:"required"`
	Reason        string `json:"reason"`
}

// RecordRefund reverses a completed sale in full: stock comes back, a
// mirror transaction of type "refund" is written, and the original sale is
// flagged refunded. The flag flips through a conditional update so two
// terminals racing on the same sale cannot both succeed; the loser gets
// ErrAlreadyRefunded.
func RecordRefund(ctx context.Context, session Session, input *NewRefund) (*Transaction, error) {
	if input.TransactionId == "" {
		return nil, NewValidationError("TransactionId", "required")
	}

	var refund *Transaction
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shift, err := currentShiftTx(tx, session.BranchId)
		if err != nil {
			return err
		}

		var original Transaction
		if err := tx.Preload("Items").First(&original, "id = ?", input.TransactionId).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if original.Type != TransactionTypeOut {
			return ErrInvalidRefundTarget
		}

		res := tx.Model(&Transaction{}).
			Where("id = ? AND refunded = ?", original.ID, false).
			Update("refunded", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRefunded
		}
		original.Refunded = true
		if err := enqueueSync(ctx, tx, original, SyncOpUpsert); err != nil {
			return err
		}

		// a refunded credit sale owes nothing; void its outstanding entry.
		// An already-settled entry stays put: the customer paid, and the
		// refund transaction records what is owed back.
		if original.PaymentMethod == PaymentMethodCredit {
			var entry CreditEntry
			err := tx.First(&entry, "transaction_id = ? AND settled = ?", original.ID, false).Error
			if err == nil {
				now := time.Now()
				entry.Settled = true
				entry.SettledMethod = SettledMethodVoided
				entry.SettledAt = &now
				entry.SettledBy = session.UserId
				if err := tx.Save(&entry).Error; err != nil {
					return err
				}
				if err := enqueueSync(ctx, tx, entry, SyncOpUpsert); err != nil {
					return err
				}
			} else if err != gorm.ErrRecordNotFound {
				return err
			}
		}

		refundId := newId()
		items := make([]TransactionItem, len(original.Items))
		for i, item := range original.Items {
			var product Product
			err := tx.First(&product, "id = ?", item.ProductId).Error
			if err == nil {
				product.Stock += item.Qty
				if err := putTx(ctx, tx, &product); err != nil {
					return err
				}
			} else if err != gorm.ErrRecordNotFound {
				return err
			}
			items[i] = TransactionItem{
				ID:            newId(),
				TransactionId: refundId,
				ProductId:     item.ProductId,
				ProductName:   item.ProductName,
				Sku:           item.Sku,
				Qty:           item.Qty,
				UnitPrice:     item.UnitPrice,
				UnitCost:      item.UnitCost,
				LineTotal:     item.LineTotal,
			}
		}

		// points and spend earned on the sale are clawed back, floored at
		// zero if the counters were adjusted by hand in between
		if original.CustomerId != "" {
			var customer Customer
			err := tx.First(&customer, "id = ?", original.CustomerId).Error
			if err == nil {
				customer.TotalSpent = customer.TotalSpent.Sub(original.Total)
				if customer.TotalSpent.IsNegative() {
					customer.TotalSpent = decimal.Zero
				}
				customer.Points -= original.PointsEarned
				if customer.Points < 0 {
					customer.Points = 0
				}
				if err := putTx(ctx, tx, &customer); err != nil {
					return err
				}
			} else if err != gorm.ErrRecordNotFound {
				return err
			}
		}

		receiptNo, err := nextReceiptNumber(tx, session.BranchId)
		if err != nil {
			return err
		}
		refund = &Transaction{
			ID:              refundId,
			BranchId:        session.BranchId,
			ReceiptNo:       receiptNo,
			Type:            TransactionTypeRefund,
			Items:           items,
			Subtotal:        original.Subtotal,
			Discount:        original.Discount,
			Total:           original.Total,
			PaymentMethod:   original.PaymentMethod,
			CustomerId:      original.CustomerId,
			ShiftId:         shift.ID,
			UserId:          session.UserId,
			RefundOfId:      original.ID,
			Note:            input.Reason,
			TransactionTime: time.Now(),
		}

		if err := applyShiftRefund(tx, ctx, shift, original.PaymentMethod, original.Total); err != nil {
			return err
		}
		return saveTransaction(ctx, tx, refund)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}
