package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Shift tracks one cash drawer session. Totals are accumulated as
// transactions record, so closing is a comparison, not a recount query.
type Shift struct {
	ID            string          `gorm:"primaryKey" json:"id"`
	BranchId      string          `gorm:"index;not null" json:"branch_id"`
	Status        ShiftStatus     `gorm:"index;not null" json:"status"`
	OpenedBy      string          `json:"opened_by"`
	ClosedBy      string          `json:"closed_by"`
	OpeningCash   decimal.Decimal `json:"opening_cash"`
	CashSales     decimal.Decimal `json:"cash_sales"`
	TransferSales decimal.Decimal `json:"transfer_sales"`
	QrSales       decimal.Decimal `json:"qr_sales"`
	CreditSales   decimal.Decimal `json:"credit_sales"`
	CashRefunds   decimal.Decimal `json:"cash_refunds"`
	SaleCount     int64           `json:"sale_count"`
	RefundCount   int64           `json:"refund_count"`
	ExpectedCash  decimal.Decimal `json:"expected_cash"`
	CountedCash   decimal.Decimal `json:"counted_cash"`
	OverShort     decimal.Decimal `json:"over_short"`
	Note          string          `json:"note"`
	OpenedAt      time.Time       `json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (s Shift) EntityKind() EntityKind { return KindShifts }
func (s Shift) EntityId() string       { return s.ID }
func (s Shift) BranchScope() string    { return s.BranchId }

// OpenShift starts a drawer session. A branch holds at most one open shift
// at a time.
func OpenShift(ctx context.Context, session Session, openingCash decimal.Decimal) (*Shift, error) {
	if openingCash.IsNegative() {
		return nil, NewValidationError("OpeningCash", "negative")
	}
	shift := &Shift{
		ID:          newId(),
		BranchId:    session.BranchId,
		Status:      ShiftStatusOpen,
		OpenedBy:    session.UserId,
		OpeningCash: openingCash,
		OpenedAt:    time.Now(),
	}
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Shift{}).
			Where("branch_id = ? AND status = ?", session.BranchId, ShiftStatusOpen).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrShiftAlreadyOpen
		}
		if err := tx.Create(shift).Error; err != nil {
			return err
		}
		return enqueueSync(ctx, tx, *shift, SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return shift, nil
}

// CloseShift reconciles the drawer. Expected cash is opening cash plus cash
// sales minus cash refunds; over/short is counted minus expected.
func CloseShift(ctx context.Context, session Session, countedCash decimal.Decimal, note string) (*Shift, error) {
	var shift *Shift
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		shift, err = currentShiftTx(tx, session.BranchId)
		if err != nil {
			return err
		}
		now := time.Now()
		shift.Status = ShiftStatusClosed
		shift.ClosedBy = session.UserId
		shift.ExpectedCash = shift.OpeningCash.Add(shift.CashSales).Sub(shift.CashRefunds)
		shift.CountedCash = countedCash
		shift.OverShort = countedCash.Sub(shift.ExpectedCash)
		shift.Note = note
		shift.ClosedAt = &now
		if err := tx.Save(shift).Error; err != nil {
			return err
		}
		return enqueueSync(ctx, tx, *shift, SyncOpUpsert)
	})
	if err != nil {
		return nil, err
	}
	return shift, nil
}

// CurrentShift returns the branch's open shift or ErrNoActiveShift.
func CurrentShift(ctx context.Context, branchId string) (*Shift, error) {
	return currentShiftTx(config.GetDB().WithContext(ctx), branchId)
}

func currentShiftTx(tx *gorm.DB, branchId string) (*Shift, error) {
	var shift Shift
	err := tx.Where("branch_id = ? AND status = ?", branchId, ShiftStatusOpen).
		First(&shift).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNoActiveShift
		}
		return nil, err
	}
	return &shift, nil
}

func ListShifts(ctx context.Context, branchId string) ([]Shift, error) {
	var shifts []Shift
	err := config.GetDB().WithContext(ctx).
		Where("branch_id = ?", branchId).
		Order("opened_at desc").
		Find(&shifts).Error
	if err != nil {
		return nil, err
	}
	return shifts, nil
}

// applyShiftSale folds a completed sale into the open shift's running
// totals inside the sale's transaction.
func applyShiftSale(tx *gorm.DB, ctx context.Context, shift *Shift, method PaymentMethod, total decimal.Decimal) error {
	switch method {
	case PaymentMethodCash:
		shift.CashSales = shift.CashSales.Add(total)
	case PaymentMethodTransfer:
		shift.TransferSales = shift.TransferSales.Add(total)
	case PaymentMethodQr:
		shift.QrSales = shift.QrSales.Add(total)
	case PaymentMethodCredit:
		shift.CreditSales = shift.CreditSales.Add(total)
	}
	shift.SaleCount++
	if err := tx.Save(shift).Error; err != nil {
		return err
	}
	return enqueueSync(ctx, tx, *shift, SyncOpUpsert)
}

// applyShiftRefund folds a cash refund into the open shift's totals.
func applyShiftRefund(tx *gorm.DB, ctx context.Context, shift *Shift, method PaymentMethod, amount decimal.Decimal) error {
	if method == PaymentMethodCash {
		shift.CashRefunds = shift.CashRefunds.Add(amount)
	}
	shift.RefundCount++
	if err := tx.Save(shift).Error; err != nil {
		return err
	}
	return enqueueSync(ctx, tx, *shift, SyncOpUpsert)
}
