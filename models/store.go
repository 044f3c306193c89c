package models

import (
	"context"
	"errors"

	"bitbucket.org/shweretail/posledger_backend/config"
	"gorm.io/gorm"
)

// The durable local store contract. Get/List never touch sync state; Put and
// Delete persist the change, append a sync queue entry and bump the branch
// revision counter in one transaction.
//
// Transactions (the ledger kind) do not go through Put: they are appended by
// the engine operations in posSale.go/stockIn.go/refund.go, which reuse
// putTx/enqueueSync so their queue entries are generated the same way.

func Get[T Entity](ctx context.Context, id string) (*T, error) {
	db := config.GetDB()
	var out T
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// List returns the branch's slice of a collection. Switching the active
// branch is just listing with a different id; other branches' rows stay put.
func List[T Entity](ctx context.Context, branchId string) ([]T, error) {
	db := config.GetDB()
	var out []T
	if err := db.WithContext(ctx).
		Where("branch_id = ?", branchId).
		Order("created_at").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Put upserts by id: an existing row with the same id is replaced.
func Put[T Entity](ctx context.Context, entity *T) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(entity).Error; err != nil {
			return err
		}
		return enqueueSync(ctx, tx, *entity, SyncOpUpsert)
	})
}

func Delete[T Entity](ctx context.Context, id string) error {
	existing, err := Get[T](ctx, id)
	if err != nil {
		return err
	}
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(existing).Error; err != nil {
			return err
		}
		return enqueueSync(ctx, tx, *existing, SyncOpDelete)
	})
}
