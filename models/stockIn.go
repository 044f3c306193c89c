package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type NewStockInItem struct {
	ProductId string          `json:"product_id" validate:"required"`
	Qty       int             `json:"qty" validate:"gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type NewStockIn struct {
	Items []NewStockInItem `json:"items"`
	Note  string           `json:"note"`
}

// RecordStockIn receives goods: each line raises the product stock and a
// negative unit cost is replaced by the product's current cost. The receipt
// lands in the ledger as a type "in" transaction so stock history is
// reconstructible from transactions alone.
func RecordStockIn(ctx context.Context, session Session, input *NewStockIn) (*Transaction, error) {
	if len(input.Items) == 0 {
		return nil, NewValidationError("Items", "required")
	}
	for _, item := range input.Items {
		if item.ProductId == "" {
			return nil, NewValidationError("ProductId", "required")
		}
		if item.Qty <= 0 {
			return nil, NewValidationError("Qty", "must be positive")
		}
	}

	var txn *Transaction
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txnId := newId()
		items := make([]TransactionItem, len(input.Items))
		totalCost := decimal.Zero

		for i, item := range input.Items {
			var product Product
			if err := tx.First(&product, "id = ?", item.ProductId).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrNotFound
				}
				return err
			}

			unitCost := item.UnitCost
			if unitCost.IsNegative() || unitCost.IsZero() {
				unitCost = product.CostPrice
			} else {
				product.CostPrice = unitCost
			}
			product.Stock += item.Qty
			if err := putTx(ctx, tx, &product); err != nil {
				return err
			}

			lineTotal := unitCost.Mul(decimal.NewFromInt(int64(item.Qty)))
			totalCost = totalCost.Add(lineTotal)
			items[i] = TransactionItem{
				ID:            newId(),
				TransactionId: txnId,
				ProductId:     product.ID,
				ProductName:   product.Name,
				Sku:           product.Sku,
				Qty:           item.Qty,
				UnitPrice:     unitCost,
				UnitCost:      unitCost,
				LineTotal:     lineTotal,
			}
		}

		receiptNo, err := nextReceiptNumber(tx, session.BranchId)
		if err != nil {
			return err
		}
		txn = &Transaction{
			ID:              txnId,
			BranchId:        session.BranchId,
			ReceiptNo:       receiptNo,
			Type:            TransactionTypeIn,
			Items:           items,
			Subtotal:        totalCost,
			Total:           totalCost,
			UserId:          session.UserId,
			ShiftId:         session.ShiftId,
			Note:            input.Note,
			TransactionTime: time.Now(),
		}
		return saveTransaction(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}
