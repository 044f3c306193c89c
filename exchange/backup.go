package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/models"
	"bitbucket.org/shweretail/posledger_backend/utils"
	"gorm.io/gorm"
)

// ErrImportSchema means the backup file is structurally unusable: wrong
// version, wrong branch shape or corrupt records. Nothing is written when
// it is returned.
var ErrImportSchema = errors.New("backup file does not match the expected schema")

const storeDocumentVersion = 1

// StoreDocument is a complete portable snapshot of one branch's store.
// Sync bookkeeping and receipt number series are device state and stay out
// of it on purpose.
type StoreDocument struct {
	Version    int       `json:"version"`
	BranchId   string    `json:"branch_id"`
	ExportedAt time.Time `json:"exported_at"`

	Branch        *models.Branch       `json:"branch,omitempty"`
	Settings      *models.Settings     `json:"settings,omitempty"`
	Users         []models.User        `json:"users"`
	Products      []models.Product     `json:"products"`
	Customers     []models.Customer    `json:"customers"`
	Promotions    []models.Promotion   `json:"promotions"`
	Transactions  []models.Transaction `json:"transactions"`
	Shifts        []models.Shift       `json:"shifts"`
	HeldBills     []models.HeldBill    `json:"held_bills"`
	CreditEntries []models.CreditEntry `json:"credit_entries"`
}

// ExportStore serializes the whole branch as one JSON document.
func ExportStore(ctx context.Context, branchId string, w io.Writer) error {
	doc := StoreDocument{
		Version:    storeDocumentVersion,
		BranchId:   branchId,
		ExportedAt: time.Now(),
	}

	var err error
	if doc.Branch, err = models.GetBranch(ctx, branchId); err != nil && err != models.ErrNotFound {
		return err
	}
	if doc.Settings, err = models.GetSettings(ctx, branchId); err != nil {
		return err
	}
	if doc.Users, err = models.ListUsers(ctx, branchId); err != nil {
		return err
	}
	if doc.Products, err = models.ListProducts(ctx, branchId); err != nil {
		return err
	}
	if doc.Customers, err = models.ListCustomers(ctx, branchId); err != nil {
		return err
	}
	if doc.Promotions, err = models.ListPromotions(ctx, branchId); err != nil {
		return err
	}
	if doc.Transactions, err = models.ListTransactions(ctx, branchId, models.TransactionFilter{}); err != nil {
		return err
	}
	if doc.Shifts, err = models.ListShifts(ctx, branchId); err != nil {
		return err
	}
	if doc.HeldBills, err = models.ListHeldBills(ctx, branchId); err != nil {
		return err
	}
	if doc.CreditEntries, err = models.ListCreditEntries(ctx, branchId); err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&doc)
}

// ImportStore restores a branch from a snapshot. The document is parsed
// and validated in full before the first write; only then is the branch's
// existing data replaced, all inside one store transaction. A bad file
// leaves the store exactly as it was.
//
// Restored rows do not enter the sync queue: the snapshot's contents were
// either already synced when exported or belong to a fresh device that
// will reconcile through a normal pull.
func ImportStore(ctx context.Context, r io.Reader) (*StoreDocument, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc StoreDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportSchema, err)
	}
	if err := validateDocument(&doc); err != nil {
		return nil, err
	}

	ctx = utils.SetRemoteOriginInContext(ctx)
	branchId := doc.BranchId

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.Transaction{}, &models.TransactionItem{}, &models.HeldBill{},
			&models.CreditEntry{}, &models.Shift{}, &models.Promotion{},
			&models.Customer{}, &models.Product{}, &models.User{}, &models.Settings{},
		} {
			if _, ok := model.(*models.TransactionItem); ok {
				// items hang off transactions and carry no branch column
				if err := tx.Where("transaction_id IN (?)",
					tx.Model(&models.Transaction{}).Select("id").Where("branch_id = ?", branchId),
				).Delete(model).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Where("branch_id = ?", branchId).Delete(model).Error; err != nil {
				return err
			}
		}

		if doc.Branch != nil {
			if err := tx.Save(doc.Branch).Error; err != nil {
				return err
			}
		}
		if doc.Settings != nil && doc.Settings.ID != "" {
			if err := tx.Save(doc.Settings).Error; err != nil {
				return err
			}
		}
		for i := range doc.Users {
			if err := tx.Create(&doc.Users[i]).Error; err != nil {
				return err
			}
		}
		for i := range doc.Products {
			if err := tx.Create(&doc.Products[i]).Error; err != nil {
				return err
			}
		}
		for i := range doc.Customers {
			if err := tx.Create(&doc.Customers[i]).Error; err != nil {
				return err
			}
		}
		for i := range doc.Promotions {
			if err := tx.Create(&doc.Promotions[i]).Error; err != nil {
				return err
			}
		}
		for i := range doc.Transactions {
			if err := tx.Create(&doc.Transactions[i]).Error; err != nil {
				return err
			}
		}
		for i := range doc.Shifts {
			if err := tx.Create(&doc.Shifts[i]).Error; err != nil {
				return err
			}
		}
		for i := range doc.HeldBills {
			if err := tx.Create(&doc.HeldBills[i]).Error; err != nil {
				return err
			}
		}
		for i := range doc.CreditEntries {
			if err := tx.Create(&doc.CreditEntries[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = config.RemoveRedisKey("settings:" + branchId)
	return &doc, nil
}

func validateDocument(doc *StoreDocument) error {
	if doc.Version != storeDocumentVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrImportSchema, doc.Version)
	}
	if doc.BranchId == "" {
		return fmt.Errorf("%w: missing branch id", ErrImportSchema)
	}

	check := func(id string, branchId string, what string, idx int) error {
		if id == "" {
			return fmt.Errorf("%w: %s %d has no id", ErrImportSchema, what, idx)
		}
		if branchId != doc.BranchId {
			return fmt.Errorf("%w: %s %d belongs to another branch", ErrImportSchema, what, idx)
		}
		return nil
	}

	for i, p := range doc.Products {
		if err := check(p.ID, p.BranchId, "product", i); err != nil {
			return err
		}
		if p.Stock < 0 {
			return fmt.Errorf("%w: product %d has negative stock", ErrImportSchema, i)
		}
	}
	for i, c := range doc.Customers {
		if err := check(c.ID, c.BranchId, "customer", i); err != nil {
			return err
		}
	}
	for i, p := range doc.Promotions {
		if err := check(p.ID, p.BranchId, "promotion", i); err != nil {
			return err
		}
	}
	for i, t := range doc.Transactions {
		if err := check(t.ID, t.BranchId, "transaction", i); err != nil {
			return err
		}
		if !t.Type.Valid() {
			return fmt.Errorf("%w: transaction %d has unknown type", ErrImportSchema, i)
		}
	}
	for i, s := range doc.Shifts {
		if err := check(s.ID, s.BranchId, "shift", i); err != nil {
			return err
		}
	}
	for i, b := range doc.HeldBills {
		if err := check(b.ID, b.BranchId, "held bill", i); err != nil {
			return err
		}
	}
	for i, c := range doc.CreditEntries {
		if err := check(c.ID, c.BranchId, "credit entry", i); err != nil {
			return err
		}
	}
	for i, u := range doc.Users {
		if err := check(u.ID, u.BranchId, "user", i); err != nil {
			return err
		}
	}
	return nil
}
