package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"gorm.io/gorm"
)

// SyncQueueEntry is one unpushed local mutation. Entries are drained in
// revision order; a failed entry holds the remote's rejection reason and
// waits for a manual retry.
type SyncQueueEntry struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	BranchId  string          `gorm:"index;not null" json:"branch_id"`
	Kind      EntityKind      `gorm:"index;not null" json:"kind"`
	EntityId  string          `gorm:"index;not null" json:"entity_id"`
	Op        SyncOp          `gorm:"not null" json:"op"`
	Revision  int64           `gorm:"index;not null" json:"revision"`
	Payload   []byte          `json:"payload"`
	Status    SyncEntryStatus `gorm:"index;not null" json:"status"`
	Attempts  int             `gorm:"default:0" json:"attempts"`
	LastError string          `json:"last_error"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PendingSyncEntries returns unpushed entries oldest revision first. Failed
// entries are excluded; they rejoin the queue through RetryFailedSyncEntries.
func PendingSyncEntries(ctx context.Context, branchId string, limit int) ([]SyncQueueEntry, error) {
	q := config.GetDB().WithContext(ctx).
		Where("branch_id = ? AND status = ?", branchId, SyncEntryStatusPending).
		Order("revision asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []SyncQueueEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteSyncEntry removes an entry after the remote acknowledged it.
func DeleteSyncEntry(ctx context.Context, entryId uint) error {
	return config.GetDB().WithContext(ctx).
		Delete(&SyncQueueEntry{}, "id = ?", entryId).Error
}

// MarkSyncEntryFailed parks a remote-rejected entry with the reason. The
// entry keeps its revision so a retry replays in the original order.
func MarkSyncEntryFailed(ctx context.Context, entryId uint, reason string) error {
	return config.GetDB().WithContext(ctx).Model(&SyncQueueEntry{}).
		Where("id = ?", entryId).
		Updates(map[string]interface{}{
			"status":     SyncEntryStatusFailed,
			"last_error": reason,
		}).Error
}

// BumpSyncEntryAttempt counts a transient push failure without changing the
// entry's status.
func BumpSyncEntryAttempt(ctx context.Context, entryId uint, reason string) error {
	return config.GetDB().WithContext(ctx).Model(&SyncQueueEntry{}).
		Where("id = ?", entryId).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}

// RetryFailedSyncEntries returns failed entries to pending so the next drain
// picks them up again.
func RetryFailedSyncEntries(ctx context.Context, branchId string) (int64, error) {
	res := config.GetDB().WithContext(ctx).Model(&SyncQueueEntry{}).
		Where("branch_id = ? AND status = ?", branchId, SyncEntryStatusFailed).
		Updates(map[string]interface{}{
			"status":     SyncEntryStatusPending,
			"last_error": "",
		})
	return res.RowsAffected, res.Error
}

func ListFailedSyncEntries(ctx context.Context, branchId string) ([]SyncQueueEntry, error) {
	var entries []SyncQueueEntry
	err := config.GetDB().WithContext(ctx).
		Where("branch_id = ? AND status = ?", branchId, SyncEntryStatusFailed).
		Order("revision asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SyncQueueDepth reports pending and failed counts for the status surface.
func SyncQueueDepth(ctx context.Context, branchId string) (pending int64, failed int64, err error) {
	db := config.GetDB().WithContext(ctx)
	if err = db.Model(&SyncQueueEntry{}).
		Where("branch_id = ? AND status = ?", branchId, SyncEntryStatusPending).
		Count(&pending).Error; err != nil {
		return 0, 0, err
	}
	if err = db.Model(&SyncQueueEntry{}).
		Where("branch_id = ? AND status = ?", branchId, SyncEntryStatusFailed).
		Count(&failed).Error; err != nil {
		return 0, 0, err
	}
	return pending, failed, nil
}
