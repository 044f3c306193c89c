package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BillItem is one parked cart line. Prices are snapshots; resuming re-checks
// nothing and the sale flow revalidates stock at payment time.
type BillItem struct {
	ProductId   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type HeldBill struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	BranchId   string     `gorm:"index;not null" json:"branch_id"`
	Label      string     `json:"label"`
	CustomerId string     `json:"customer_id"`
	Items      []BillItem `gorm:"serializer:json" json:"items"`
	HeldBy     string     `json:"held_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (b HeldBill) EntityKind() EntityKind { return KindHeldBills }
func (b HeldBill) EntityId() string       { return b.ID }
func (b HeldBill) BranchScope() string    { return b.BranchId }

type NewHeldBill struct {
	Label      string     `json:"label"`
	CustomerId string     `json:"customer_id"`
	Items      []BillItem `json:"items"`
}

// HoldBill parks the current cart without touching stock or totals.
func HoldBill(ctx context.Context, session Session, input NewHeldBill) (*HeldBill, error) {
	if len(input.Items) == 0 {
		return nil, NewValidationError("Items", "required")
	}
	bill := &HeldBill{
		ID:         newId(),
		BranchId:   session.BranchId,
		Label:      input.Label,
		CustomerId: input.CustomerId,
		Items:      input.Items,
		HeldBy:     session.UserId,
	}
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bill).Error; err != nil {
			return err
		}
		return enqueueSync(ctx, tx, *bill, SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// ResumeHeldBill returns the parked cart and removes the snapshot in the
// same transaction so it cannot be resumed twice.
func ResumeHeldBill(ctx context.Context, session Session, billId string) (*HeldBill, error) {
	var bill HeldBill
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&bill, "id = ?", billId).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Delete(&HeldBill{}, "id = ?", billId).Error; err != nil {
			return err
		}
		return enqueueSync(ctx, tx, bill, SyncOpDelete)
	})
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

func ListHeldBills(ctx context.Context, branchId string) ([]HeldBill, error) {
	return List[HeldBill](ctx, branchId)
}

func DeleteHeldBill(ctx context.Context, billId string) error {
	return Delete[HeldBill](ctx, billId)
}
