package models

import (
	"context"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/utils"
)

// Settings is a one-row-per-branch collection. PointDivisor drives customer
// point accrual at checkout: points = floor(net total / divisor).
type Settings struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	BranchId      string    `gorm:"uniqueIndex;size:36;not null" json:"branch_id"`
	StoreName     string    `gorm:"size:255" json:"store_name"`
	CurrencyLabel string    `gorm:"size:16" json:"currency_label"`
	PointDivisor  int64     `gorm:"not null;default:1000" json:"point_divisor"`
	ReceiptFooter string    `gorm:"size:255" json:"receipt_footer"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s Settings) EntityKind() EntityKind { return KindSettings }
func (s Settings) EntityId() string       { return s.ID }
func (s Settings) BranchScope() string    { return s.BranchId }

// GetSettings reads the branch settings, redis-cached. A branch without a
// settings row gets defaults; the row is only created on first save.
func GetSettings(ctx context.Context, branchId string) (*Settings, error) {
	redisKey := "settings:" + branchId
	var cached Settings
	exists, err := config.GetRedisObject(redisKey, &cached)
	if err == nil && exists {
		return &cached, nil
	}

	db := config.GetDB()
	var settings Settings
	if err := db.WithContext(ctx).Where("branch_id = ?", branchId).Take(&settings).Error; err != nil {
		settings = Settings{BranchId: branchId, PointDivisor: 1000}
		return &settings, nil
	}
	_ = config.SetRedisObject(redisKey, &settings, 0)
	return &settings, nil
}

type UpdateSettingsInput struct {
	StoreName     string `json:"store_name"`
	CurrencyLabel string `json:"currency_label"`
	PointDivisor  int64  `json:"point_divisor" validate:"gte=1"`
	ReceiptFooter string `json:"receipt_footer"`
}

func UpdateSettings(ctx context.Context, session Session, input *UpdateSettingsInput) (*Settings, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, &ValidationError{Fields: utils.ProcessValidationErrors(err)}
	}

	db := config.GetDB()
	var settings Settings
	if err := db.WithContext(ctx).Where("branch_id = ?", session.BranchId).Take(&settings).Error; err != nil {
		settings = Settings{ID: newId(), BranchId: session.BranchId}
	}
	settings.StoreName = input.StoreName
	settings.CurrencyLabel = input.CurrencyLabel
	settings.PointDivisor = input.PointDivisor
	settings.ReceiptFooter = input.ReceiptFooter

	if err := Put(ctx, &settings); err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey("settings:" + session.BranchId)
	return &settings, nil
}
