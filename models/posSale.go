package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NewSaleItem is one requested cart line. Prices come from the product row
// at sale time; the client never supplies them.
type NewSaleItem struct {
	ProductId string `json:"product_id" validate:"required"`
	Qty       int    `json:"qty" validate:"gt=0"`
}

type NewSale struct {
	Items          []NewSaleItem   `json:"items"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	ManualDiscount decimal.Decimal `json:"manual_discount"`
	CustomerId     string          `json:"customer_id"`
	Note           string          `json:"note"`
}

func (input *NewSale) validate() error {
	if len(input.Items) == 0 {
		return NewValidationError("Items", "required")
	}
	for _, item := range input.Items {
		if item.ProductId == "" {
			return NewValidationError("ProductId", "required")
		}
		if item.Qty <= 0 {
			return NewValidationError("Qty", "must be positive")
		}
	}
	if !input.PaymentMethod.Valid() {
		return NewValidationError("PaymentMethod", "invalid")
	}
	if input.ManualDiscount.IsNegative() {
		return NewValidationError("ManualDiscount", "must not be negative")
	}
	return nil
}

// RecordSale runs the whole checkout as one store transaction: stock checks
// and decrements, promotion evaluation, receipt numbering, shift totals,
// customer counters and the credit entry all commit together or not at all.
// Stock is validated against every line before anything is written, so a
// failed sale leaves no partial state behind.
func RecordSale(ctx context.Context, session Session, input *NewSale) (*Transaction, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.PaymentMethod == PaymentMethodCredit && input.CustomerId == "" {
		return nil, NewValidationError("CustomerId", "credit sale needs a customer")
	}

	promos, err := ListActivePromotions(ctx, session.BranchId)
	if err != nil {
		return nil, err
	}
	settings, err := GetSettings(ctx, session.BranchId)
	if err != nil {
		return nil, err
	}

	var txn *Transaction
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shift, err := currentShiftTx(tx, session.BranchId)
		if err != nil {
			return err
		}

		// load and validate every line before the first write
		products := make([]*Product, len(input.Items))
		for i, item := range input.Items {
			var product Product
			if err := tx.First(&product, "id = ?", item.ProductId).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrNotFound
				}
				return err
			}
			if product.Stock < item.Qty {
				return ErrInsufficientStock
			}
			products[i] = &product
		}

		lines := make([]CartLine, len(input.Items))
		items := make([]TransactionItem, len(input.Items))
		subtotal := decimal.Zero
		txnId := newId()
		for i, item := range input.Items {
			product := products[i]
			lineTotal := product.SellPrice.Mul(decimal.NewFromInt(int64(item.Qty)))
			subtotal = subtotal.Add(lineTotal)
			lines[i] = CartLine{ProductId: product.ID, Qty: item.Qty, UnitPrice: product.SellPrice}
			items[i] = TransactionItem{
				ID:            newId(),
				TransactionId: txnId,
				ProductId:     product.ID,
				ProductName:   product.Name,
				Sku:           product.Sku,
				Qty:           item.Qty,
				UnitPrice:     product.SellPrice,
				UnitCost:      product.CostPrice,
				LineTotal:     lineTotal,
			}
		}

		promo := EvaluatePromotions(lines, promos)
		discount := promo.Discount.Add(input.ManualDiscount)
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}
		total := subtotal.Sub(discount)

		change := decimal.Zero
		received := input.AmountReceived
		switch input.PaymentMethod {
		case PaymentMethodCash:
			if received.LessThan(total) {
				return NewValidationError("AmountReceived", "less than total")
			}
			change = received.Sub(total)
		case PaymentMethodCredit:
			received = decimal.Zero
		default:
			received = total
		}

		receiptNo, err := nextReceiptNumber(tx, session.BranchId)
		if err != nil {
			return err
		}

		txn = &Transaction{
			ID:              txnId,
			BranchId:        session.BranchId,
			ReceiptNo:       receiptNo,
			Type:            TransactionTypeOut,
			Items:           items,
			Subtotal:        subtotal,
			Discount:        discount,
			Total:           total,
			PaymentMethod:   input.PaymentMethod,
			AmountReceived:  received,
			ChangeGiven:     change,
			CustomerId:      input.CustomerId,
			ShiftId:         shift.ID,
			UserId:          session.UserId,
			Note:            input.Note,
			TransactionTime: time.Now(),
		}
		if promo.Applied != nil {
			txn.PromotionId = promo.Applied.ID
			txn.PromotionName = promo.Applied.Name
		}

		for i, item := range input.Items {
			product := products[i]
			product.Stock -= item.Qty
			if err := putTx(ctx, tx, product); err != nil {
				return err
			}
		}

		if input.CustomerId != "" {
			var customer Customer
			if err := tx.First(&customer, "id = ?", input.CustomerId).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					return ErrNotFound
				}
				return err
			}
			earned := int64(0)
			if settings.PointDivisor > 0 {
				earned = total.Div(decimal.NewFromInt(settings.PointDivisor)).IntPart()
			}
			customer.TotalSpent = customer.TotalSpent.Add(total)
			customer.VisitCount++
			customer.Points += earned
			txn.PointsEarned = earned
			if err := putTx(ctx, tx, &customer); err != nil {
				return err
			}
		}

		if input.PaymentMethod == PaymentMethodCredit {
			entry := CreditEntry{
				ID:            newId(),
				BranchId:      session.BranchId,
				CustomerId:    input.CustomerId,
				TransactionId: txnId,
				Amount:        total,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			if err := enqueueSync(ctx, tx, entry, SyncOpUpsert); err != nil {
				return err
			}
		}

		if err := applyShiftSale(tx, ctx, shift, input.PaymentMethod, total); err != nil {
			return err
		}
		return saveTransaction(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}
