package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
)

// SyncConflict records a merge the engine would not resolve automatically,
// such as the same sale refunded on two devices while offline. The losing
// side's payload is preserved so a supervisor can reconcile by hand.
type SyncConflict struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	BranchId   string     `gorm:"index;not null" json:"branch_id"`
	Kind       EntityKind `gorm:"index;not null" json:"kind"`
	EntityId   string     `gorm:"index;not null" json:"entity_id"`
	Reason     string     `json:"reason"`
	Local      []byte     `json:"local"`
	Remote     []byte     `json:"remote"`
	Resolved   bool       `gorm:"index" json:"resolved"`
	ResolvedBy string     `json:"resolved_by"`
	ResolvedAt *time.Time `json:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func RecordSyncConflict(ctx context.Context, conflict *SyncConflict) error {
	if conflict.ID == "" {
		conflict.ID = newId()
	}
	return config.GetDB().WithContext(ctx).Create(conflict).Error
}

func ListOpenSyncConflicts(ctx context.Context, branchId string) ([]SyncConflict, error) {
	var conflicts []SyncConflict
	err := config.GetDB().WithContext(ctx).
		Where("branch_id = ? AND resolved = ?", branchId, false).
		Order("created_at asc").
		Find(&conflicts).Error
	if err != nil {
		return nil, err
	}
	return conflicts, nil
}

func ResolveSyncConflict(ctx context.Context, session Session, conflictId string) error {
	now := time.Now()
	res := config.GetDB().WithContext(ctx).Model(&SyncConflict{}).
		Where("id = ? AND resolved = ?", conflictId, false).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_by": session.UserId,
			"resolved_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
