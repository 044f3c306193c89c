package models

import "errors"

type TransactionType string

const (
	TransactionTypeIn     TransactionType = "in"
	TransactionTypeOut    TransactionType = "out"
	TransactionTypeRefund TransactionType = "refund"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIn, TransactionTypeOut, TransactionTypeRefund:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodQr       PaymentMethod = "qr"
	PaymentMethodCredit   PaymentMethod = "credit"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodQr, PaymentMethodCredit:
		return true
	}
	return false
}

type PromotionType string

const (
	PromotionTypePercentAll       PromotionType = "percent_all"
	PromotionTypeBuyXGetDiscount  PromotionType = "buy_x_get_discount"
	PromotionTypeProductDiscount  PromotionType = "product_discount"
	PromotionTypeBuyOneGetOne     PromotionType = "buy_1_get_1"
	PromotionTypeBundlePrice      PromotionType = "bundle_price"
)

func (t PromotionType) Valid() bool {
	switch t {
	case PromotionTypePercentAll, PromotionTypeBuyXGetDiscount, PromotionTypeProductDiscount,
		PromotionTypeBuyOneGetOne, PromotionTypeBundlePrice:
		return true
	}
	return false
}

type ShiftStatus string

const (
	ShiftStatusOpen   ShiftStatus = "open"
	ShiftStatusClosed ShiftStatus = "closed"
)

type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleCashier UserRole = "cashier"
)

type SyncOp string

const (
	SyncOpUpsert SyncOp = "upsert"
	SyncOpDelete SyncOp = "delete"
)

type SyncEntryStatus string

const (
	SyncEntryStatusPending SyncEntryStatus = "pending"
	// Failed entries were rejected by the remote store. They stay queued for
	// manual retry and are skipped by the automatic drain.
	SyncEntryStatusFailed SyncEntryStatus = "failed"
)

const (
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual       = "manual"
	SyncTriggeredTimer        = "timer"
	SyncTriggeredConnectivity = "connectivity"
)

// EntityKind names a synced collection. The remote sync protocol is keyed by
// (kind, entity id, revision), so these values are part of the wire contract.
type EntityKind string

const (
	KindProducts      EntityKind = "products"
	KindTransactions  EntityKind = "transactions"
	KindCustomers     EntityKind = "customers"
	KindPromotions    EntityKind = "promotions"
	KindShifts        EntityKind = "shifts"
	KindHeldBills     EntityKind = "held_bills"
	KindCreditEntries EntityKind = "credit_entries"
	KindUsers         EntityKind = "users"
	KindBranches      EntityKind = "branches"
	KindSettings      EntityKind = "settings"
)

func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(s) {
	case KindProducts, KindTransactions, KindCustomers, KindPromotions, KindShifts,
		KindHeldBills, KindCreditEntries, KindUsers, KindBranches, KindSettings:
		return EntityKind(s), nil
	}
	return "", errors.New("unknown entity kind: " + s)
}
