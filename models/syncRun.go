package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
)

// SyncRun is one push/pull cycle's outcome, kept for the sync history
// screen. Runs are local diagnostics and are never synced themselves.
type SyncRun struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	BranchId   string     `gorm:"index;not null" json:"branch_id"`
	Triggered  string     `json:"triggered"`
	Status     string     `gorm:"index" json:"status"`
	Pushed     int        `json:"pushed"`
	Pulled     int        `json:"pulled"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

func StartSyncRun(ctx context.Context, branchId string, triggered string) (*SyncRun, error) {
	run := &SyncRun{
		ID:        newId(),
		BranchId:  branchId,
		Triggered: triggered,
		Status:    SyncRunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := config.GetDB().WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func FinishSyncRun(ctx context.Context, run *SyncRun, status string, errMsg string) error {
	now := time.Now()
	run.Status = status
	run.Error = errMsg
	run.FinishedAt = &now
	return config.GetDB().WithContext(ctx).Save(run).Error
}

func ListSyncRuns(ctx context.Context, branchId string, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []SyncRun
	err := config.GetDB().WithContext(ctx).
		Where("branch_id = ?", branchId).
		Order("started_at desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
