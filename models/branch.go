package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/utils"
	"github.com/google/uuid"
)

// Branch partitions every other collection: one row per physical store
// location. A branch row's BranchScope is its own id so branch edits sync
// with the rest of that branch's data.
type Branch struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Address   string    `gorm:"size:255" json:"address"`
	Phone     string    `gorm:"size:32" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b Branch) EntityKind() EntityKind { return KindBranches }
func (b Branch) EntityId() string       { return b.ID }
func (b Branch) BranchScope() string    { return b.ID }

type NewBranch struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

func CreateBranch(ctx context.Context, input *NewBranch) (*Branch, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, &ValidationError{Fields: utils.ProcessValidationErrors(err)}
	}

	branch := Branch{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(input.Name),
		Address: strings.TrimSpace(input.Address),
		Phone:   strings.TrimSpace(input.Phone),
	}
	if err := Put(ctx, &branch); err != nil {
		return nil, err
	}
	return &branch, nil
}

func GetBranch(ctx context.Context, id string) (*Branch, error) {
	return Get[Branch](ctx, id)
}

func ListBranches(ctx context.Context) ([]Branch, error) {
	db := config.GetDB()
	var branches []Branch
	if err := db.WithContext(ctx).Order("created_at").Find(&branches).Error; err != nil {
		return nil, err
	}
	return branches, nil
}
