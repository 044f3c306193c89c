package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/models"
	"bitbucket.org/shweretail/posledger_backend/utils"
	"gorm.io/gorm"
)

// MergeStrategy decides how one pulled change lands in the local store.
// Strategies run with the remote-origin flag set, so their writes never
// re-enter the push queue.
type MergeStrategy interface {
	Apply(ctx context.Context, change ChangeRecord) error
}

// strategyFor routes a change to its collection's strategy. Transactions
// are append-only and get conflict detection; everything else merges
// last-writer-wins.
func strategyFor(kind models.EntityKind) (MergeStrategy, error) {
	switch kind {
	case models.KindTransactions:
		return appendOnlyTransactions{}, nil
	case models.KindProducts:
		return lastWriterWins[models.Product]{}, nil
	case models.KindCustomers:
		return lastWriterWins[models.Customer]{}, nil
	case models.KindPromotions:
		return lastWriterWins[models.Promotion]{}, nil
	case models.KindShifts:
		return lastWriterWins[models.Shift]{}, nil
	case models.KindHeldBills:
		return lastWriterWins[models.HeldBill]{}, nil
	case models.KindCreditEntries:
		return lastWriterWins[models.CreditEntry]{}, nil
	case models.KindUsers:
		return lastWriterWins[models.User]{}, nil
	case models.KindBranches:
		return lastWriterWins[models.Branch]{}, nil
	case models.KindSettings:
		return lastWriterWins[models.Settings]{}, nil
	}
	return nil, fmt.Errorf("no merge strategy for kind %q", kind)
}

// lastWriterWins merges by modification time: the remote payload replaces
// the local row only when it is at least as new. Merge arrival order must
// not decide the winner, or a change that sat in a queue while the row was
// edited locally would clobber the fresher edit on pull.
type lastWriterWins[T models.Entity] struct{}

func (lastWriterWins[T]) Apply(ctx context.Context, change ChangeRecord) error {
	ctx = utils.SetRemoteOriginInContext(ctx)
	db := config.GetDB().WithContext(ctx)

	if change.Op == models.SyncOpDelete {
		var zero T
		return db.Delete(&zero, "id = ?", change.EntityId).Error
	}

	var remoteMeta struct {
		UpdatedAt time.Time `json:"updated_at"`
	}
	if err := json.Unmarshal(change.Payload, &remoteMeta); err != nil {
		return err
	}

	var local struct {
		UpdatedAt time.Time
	}
	var zero T
	err := db.Model(&zero).Where("id = ?", change.EntityId).
		Select("updated_at").Take(&local).Error
	if err == nil && local.UpdatedAt.After(remoteMeta.UpdatedAt) {
		return nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var entity T
	if err := json.Unmarshal(change.Payload, &entity); err != nil {
		return err
	}
	return db.Save(&entity).Error
}

// appendOnlyTransactions inserts ledger records it has not seen and never
// rewrites ones it has, with one exception: a remote refund flag on a sale
// we also refunded locally is a real business conflict and is surfaced as a
// SyncConflict row for a supervisor instead of being merged silently.
type appendOnlyTransactions struct{}

func (appendOnlyTransactions) Apply(ctx context.Context, change ChangeRecord) error {
	ctx = utils.SetRemoteOriginInContext(ctx)
	db := config.GetDB().WithContext(ctx)

	if change.Op == models.SyncOpDelete {
		// ledger records are never deleted, not even by the remote
		return nil
	}

	var remote models.Transaction
	if err := json.Unmarshal(change.Payload, &remote); err != nil {
		return err
	}

	var local models.Transaction
	err := db.First(&local, "id = ?", remote.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// a second refund of a sale we already refunded is a double
		// refund; keep the ledger complete but flag it for review
		if remote.Type == models.TransactionTypeRefund && remote.RefundOfId != "" {
			var prior models.Transaction
			priorErr := db.Where("refund_of_id = ? AND id <> ?", remote.RefundOfId, remote.ID).
				First(&prior).Error
			if priorErr == nil {
				priorBytes, _ := json.Marshal(prior)
				if err := models.RecordSyncConflict(ctx, &models.SyncConflict{
					BranchId: prior.BranchId,
					Kind:     models.KindTransactions,
					EntityId: remote.RefundOfId,
					Reason:   "sale refunded on more than one device",
					Local:    priorBytes,
					Remote:   change.Payload,
				}); err != nil {
					return err
				}
			} else if !errors.Is(priorErr, gorm.ErrRecordNotFound) {
				return priorErr
			}
		}
		return db.Create(&remote).Error
	}
	if err != nil {
		return err
	}

	// the record exists locally; the only merge-relevant field is the
	// refunded flag, everything else is immutable
	if remote.Refunded && !local.Refunded {
		return db.Model(&models.Transaction{}).
			Where("id = ? AND refunded = ?", local.ID, false).
			Update("refunded", true).Error
	}
	return nil
}
