package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreditEntry records an unpaid sale against a known customer. Settling
// records the payment method used; the original sale transaction is not
// rewritten.
type CreditEntry struct {
	ID            string          `gorm:"primaryKey" json:"id"`
	BranchId      string          `gorm:"index;not null" json:"branch_id"`
	CustomerId    string          `gorm:"index;not null" json:"customer_id"`
	TransactionId string          `gorm:"index" json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Settled       bool            `gorm:"index" json:"settled"`
	SettledMethod PaymentMethod   `json:"settled_method"`
	SettledAt     *time.Time      `json:"settled_at"`
	SettledBy     string          `json:"settled_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SettledMethodVoided closes an entry whose sale was refunded before the
// customer paid. Not a tender, so PaymentMethod.Valid never accepts it.
const SettledMethodVoided PaymentMethod = "voided"

func (c CreditEntry) EntityKind() EntityKind { return KindCreditEntries }
func (c CreditEntry) EntityId() string       { return c.ID }
func (c CreditEntry) BranchScope() string    { return c.BranchId }

// SettleCredit marks the entry paid. The conditional update keeps a credit
// from being settled twice from two terminals.
func SettleCredit(ctx context.Context, session Session, creditId string, method PaymentMethod) (*CreditEntry, error) {
	if method == PaymentMethodCredit {
		return nil, NewValidationError("Method", "cannot settle credit with credit")
	}
	var entry CreditEntry
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, "id = ?", creditId).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		now := time.Now()
		res := tx.Model(&CreditEntry{}).
			Where("id = ? AND settled = ?", creditId, false).
			Updates(map[string]interface{}{
				"settled":        true,
				"settled_method": method,
				"settled_at":     now,
				"settled_by":     session.UserId,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCreditAlreadySettled
		}
		entry.Settled = true
		entry.SettledMethod = method
		entry.SettledAt = &now
		entry.SettledBy = session.UserId
		return enqueueSync(ctx, tx, entry, SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListCustomerCredits returns a customer's entries, unsettled first.
func ListCustomerCredits(ctx context.Context, customerId string) ([]CreditEntry, error) {
	var entries []CreditEntry
	err := config.GetDB().WithContext(ctx).
		Where("customer_id = ?", customerId).
		Order("settled asc, created_at desc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func ListCreditEntries(ctx context.Context, branchId string) ([]CreditEntry, error) {
	return List[CreditEntry](ctx, branchId)
}

// ListOutstandingCredits returns all unsettled entries for a branch.
func ListOutstandingCredits(ctx context.Context, branchId string) ([]CreditEntry, error) {
	var entries []CreditEntry
	err := config.GetDB().WithContext(ctx).
		Where("branch_id = ? AND settled = ?", branchId, false).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
