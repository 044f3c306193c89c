package models

import (
	"context"
	"encoding/json"
	"fmt"

	"bitbucket.org/shweretail/posledger_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newId() string { return uuid.NewString() }

// enqueueSync appends a sync queue entry for a local mutation inside the
// caller's store transaction, the same way the entry's entity write is
// committed: either both land or neither does. Writes merged from the remote
// store are skipped so pulled changes never echo back into the push queue.
//
// A later entry supersedes an earlier unsynced one for the same entity, so
// pending entries for the same (kind, id) are dropped before the new one is
// written. Entries already marked failed are kept: they were rejected by the
// remote and must stay visible until retried or resolved by hand.
func enqueueSync(ctx context.Context, tx *gorm.DB, e Entity, op SyncOp) error {
	if utils.IsRemoteOrigin(ctx) {
		return nil
	}

	var payload []byte
	if op == SyncOpUpsert {
		var err error
		payload, err = json.Marshal(e)
		if err != nil {
			return err
		}
	}

	rev, err := nextRevision(tx, e.BranchScope())
	if err != nil {
		return err
	}

	if err := tx.
		Where("branch_id = ? AND kind = ? AND entity_id = ? AND status = ?",
			e.BranchScope(), e.EntityKind(), e.EntityId(), SyncEntryStatusPending).
		Delete(&SyncQueueEntry{}).Error; err != nil {
		return err
	}

	entry := SyncQueueEntry{
		BranchId: e.BranchScope(),
		Kind:     e.EntityKind(),
		EntityId: e.EntityId(),
		Op:       op,
		Revision: rev,
		Payload:  payload,
		Status:   SyncEntryStatusPending,
	}
	return tx.Create(&entry).Error
}

// putTx persists an entity and its queue entry inside an existing store
// transaction. Engine operations that bundle several writes into one atomic
// unit use this directly; the standalone Put/Delete wrappers in store.go open
// their own transaction around it.
func putTx(ctx context.Context, tx *gorm.DB, e Entity) error {
	if err := tx.Save(e).Error; err != nil {
		return err
	}
	return enqueueSync(ctx, tx, e, SyncOpUpsert)
}

func deleteTx(ctx context.Context, tx *gorm.DB, e Entity) error {
	if err := tx.Delete(e).Error; err != nil {
		return err
	}
	return enqueueSync(ctx, tx, e, SyncOpDelete)
}

// nextRevision advances the branch-scoped revision counter. Read-then-
// increment runs inside the caller's transaction on the single write
// connection, so revisions are strictly monotonic per branch.
func nextRevision(tx *gorm.DB, branchId string) (int64, error) {
	state, err := ensureSyncState(tx, branchId)
	if err != nil {
		return 0, err
	}
	state.Revision++
	if err := tx.Model(&SyncState{}).
		Where("branch_id = ?", branchId).
		Update("revision", state.Revision).Error; err != nil {
		return 0, err
	}
	return state.Revision, nil
}

// TransactionNumberSeries issues human-readable receipt numbers per branch.
// The series is device-local bookkeeping and is not exported or synced;
// transaction identity on the wire is the uuid, not the receipt number.
type TransactionNumberSeries struct {
	BranchId string `gorm:"primaryKey;size:36" json:"branch_id"`
	Prefix   string `gorm:"size:16" json:"prefix"`
	NextSeq  int64  `gorm:"not null;default:1" json:"next_seq"`
}

func nextReceiptNumber(tx *gorm.DB, branchId string) (string, error) {
	var series TransactionNumberSeries
	err := tx.Where("branch_id = ?", branchId).Take(&series).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return "", err
		}
		series = TransactionNumberSeries{BranchId: branchId, Prefix: "POS-", NextSeq: 1}
		if err := tx.Create(&series).Error; err != nil {
			return "", err
		}
	}

	number := fmt.Sprintf("%s%06d", series.Prefix, series.NextSeq)
	if err := tx.Model(&TransactionNumberSeries{}).
		Where("branch_id = ?", branchId).
		Update("next_seq", series.NextSeq+1).Error; err != nil {
		return "", err
	}
	return number, nil
}
