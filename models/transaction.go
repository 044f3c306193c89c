package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is an immutable ledger record. Sales, refunds and stock
// receipts all land here; corrections are new rows (refunds), never edits.
type Transaction struct {
	ID              string            `gorm:"primaryKey" json:"id"`
	BranchId        string            `gorm:"index;not null" json:"branch_id"`
	ReceiptNo       string            `gorm:"index" json:"receipt_no"`
	Type            TransactionType   `gorm:"index;not null" json:"type"`
	Items           []TransactionItem `gorm:"foreignKey:TransactionId" json:"items"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Discount        decimal.Decimal   `json:"discount"`
	PromotionId     string            `json:"promotion_id"`
	PromotionName   string            `json:"promotion_name"`
	Total           decimal.Decimal   `json:"total"`
	PaymentMethod   PaymentMethod     `json:"payment_method"`
	AmountReceived  decimal.Decimal   `json:"amount_received"`
	ChangeGiven     decimal.Decimal   `json:"change_given"`
	CustomerId      string            `gorm:"index" json:"customer_id"`
	PointsEarned    int64             `json:"points_earned"`
	ShiftId         string            `gorm:"index" json:"shift_id"`
	UserId          string            `json:"user_id"`
	RefundOfId      string            `gorm:"index" json:"refund_of_id"`
	Refunded        bool              `json:"refunded"`
	Note            string            `json:"note"`
	TransactionTime time.Time         `gorm:"index" json:"transaction_time"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (t Transaction) EntityKind() EntityKind { return KindTransactions }
func (t Transaction) EntityId() string       { return t.ID }
func (t Transaction) BranchScope() string    { return t.BranchId }

type TransactionItem struct {
	ID            string          `gorm:"primaryKey" json:"id"`
	TransactionId string          `gorm:"index;not null" json:"transaction_id"`
	ProductId     string          `gorm:"index" json:"product_id"`
	ProductName   string          `json:"product_name"`
	Sku           string          `json:"sku"`
	Qty           int             `json:"qty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

func GetTransaction(ctx context.Context, transactionId string) (*Transaction, error) {
	var txn Transaction
	err := config.GetDB().WithContext(ctx).
		Preload("Items").
		First(&txn, "id = ?", transactionId).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// TransactionFilter narrows ListTransactions. Zero values mean no filter.
type TransactionFilter struct {
	Type       TransactionType
	ShiftId    string
	CustomerId string
	From       time.Time
	To         time.Time
	Limit      int
}

func ListTransactions(ctx context.Context, branchId string, filter TransactionFilter) ([]Transaction, error) {
	q := config.GetDB().WithContext(ctx).
		Preload("Items").
		Where("branch_id = ?", branchId)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.ShiftId != "" {
		q = q.Where("shift_id = ?", filter.ShiftId)
	}
	if filter.CustomerId != "" {
		q = q.Where("customer_id = ?", filter.CustomerId)
	}
	if !filter.From.IsZero() {
		q = q.Where("transaction_time >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("transaction_time < ?", filter.To)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var txns []Transaction
	if err := q.Order("transaction_time desc").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// saveTransaction persists the record with its items and queues it for
// sync inside the caller's transaction.
func saveTransaction(ctx context.Context, tx *gorm.DB, txn *Transaction) error {
	if err := tx.Create(txn).Error; err != nil {
		return err
	}
	return enqueueSync(ctx, tx, *txn, SyncOpUpsert)
}
