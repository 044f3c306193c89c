package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"gorm.io/gorm"
)

// SyncState is the per-branch sync bookkeeping row: the push revision
// counter and the pull watermark. One row per branch, created lazily on the
// first local mutation.
type SyncState struct {
	BranchId      string     `gorm:"primaryKey;size:36" json:"branch_id"`
	Revision      int64      `gorm:"not null;default:0" json:"revision"`
	PullWatermark string     `json:"pull_watermark"`
	LastSyncAt    *time.Time `json:"last_sync_at"`
	LastSuccessAt *time.Time `json:"last_success_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func ensureSyncState(tx *gorm.DB, branchId string) (*SyncState, error) {
	var state SyncState
	err := tx.Where("branch_id = ?", branchId).Take(&state).Error
	if err == nil {
		return &state, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	state = SyncState{BranchId: branchId}
	if err := tx.Create(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

func GetSyncState(ctx context.Context, branchId string) (*SyncState, error) {
	var state *SyncState
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		state, err = ensureSyncState(tx, branchId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// AdvancePullWatermark records how far the pull side has applied remote
// changes. Called only after every change at or below the new watermark has
// been applied, so a crash never skips records.
func AdvancePullWatermark(ctx context.Context, branchId string, watermark string) error {
	now := time.Now()
	return config.GetDB().WithContext(ctx).Model(&SyncState{}).
		Where("branch_id = ?", branchId).
		Updates(map[string]interface{}{
			"pull_watermark":  watermark,
			"last_success_at": now,
		}).Error
}

func TouchSyncState(ctx context.Context, branchId string, success bool) error {
	now := time.Now()
	updates := map[string]interface{}{"last_sync_at": now}
	if success {
		updates["last_success_at"] = now
	}
	return config.GetDB().WithContext(ctx).Model(&SyncState{}).
		Where("branch_id = ?", branchId).
		Updates(updates).Error
}
