package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/utils"
	"github.com/shopspring/decimal"
)

// Promotion is one record per active deal. Which fields matter depends on
// Type; the constructor rejects combinations the type cannot use so invalid
// records never reach the evaluator.
type Promotion struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	BranchId    string          `gorm:"index;size:36;not null" json:"branch_id"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Type        PromotionType   `gorm:"size:32;not null" json:"type"`
	Value       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"value"`
	MinQty      int             `gorm:"not null;default:0" json:"min_qty"`
	BundlePrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"bundle_price"`
	ProductId   string          `gorm:"size:36" json:"product_id"`
	Active      bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Promotion) EntityKind() EntityKind { return KindPromotions }
func (p Promotion) EntityId() string       { return p.ID }
func (p Promotion) BranchScope() string    { return p.BranchId }

type NewPromotion struct {
	Name        string          `json:"name" validate:"required"`
	Type        PromotionType   `json:"type" validate:"required"`
	Value       decimal.Decimal `json:"value"`
	MinQty      int             `json:"min_qty" validate:"gte=0"`
	BundlePrice decimal.Decimal `json:"bundle_price"`
	ProductId   string          `json:"product_id"`
	Active      bool            `json:"active"`
}

func (input *NewPromotion) validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return &ValidationError{Fields: utils.ProcessValidationErrors(err)}
	}
	if !input.Type.Valid() {
		return NewValidationError("Type", "invalid")
	}
	switch input.Type {
	case PromotionTypePercentAll, PromotionTypeBuyXGetDiscount:
		if input.Value.LessThanOrEqual(decimal.Zero) || input.Value.GreaterThan(decimal.NewFromInt(100)) {
			return NewValidationError("Value", "percent out of range")
		}
	case PromotionTypeProductDiscount:
		if input.Value.LessThanOrEqual(decimal.Zero) || input.Value.GreaterThan(decimal.NewFromInt(100)) {
			return NewValidationError("Value", "percent out of range")
		}
	case PromotionTypeBuyOneGetOne:
		if input.ProductId == "" {
			return NewValidationError("ProductId", "required")
		}
	case PromotionTypeBundlePrice:
		if input.ProductId == "" {
			return NewValidationError("ProductId", "required")
		}
		if input.MinQty < 2 {
			return NewValidationError("MinQty", "bundle needs at least 2")
		}
		if input.BundlePrice.LessThanOrEqual(decimal.Zero) {
			return NewValidationError("BundlePrice", "required")
		}
	}
	return nil
}

func CreatePromotion(ctx context.Context, session Session, input *NewPromotion) (*Promotion, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	promo := Promotion{
		ID:          newId(),
		BranchId:    session.BranchId,
		Name:        strings.TrimSpace(input.Name),
		Type:        input.Type,
		Value:       input.Value,
		MinQty:      input.MinQty,
		BundlePrice: input.BundlePrice,
		ProductId:   input.ProductId,
		Active:      input.Active,
	}
	if err := Put(ctx, &promo); err != nil {
		return nil, err
	}
	return &promo, nil
}

func SetPromotionActive(ctx context.Context, id string, active bool) (*Promotion, error) {
	promo, err := Get[Promotion](ctx, id)
	if err != nil {
		return nil, err
	}
	promo.Active = active
	if err := Put(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

func ListPromotions(ctx context.Context, branchId string) ([]Promotion, error) {
	return List[Promotion](ctx, branchId)
}

// ListActivePromotions returns active promotions in creation order. The
// evaluator relies on that order for deterministic tie-breaking.
func ListActivePromotions(ctx context.Context, branchId string) ([]Promotion, error) {
	db := config.GetDB()
	var promos []Promotion
	if err := db.WithContext(ctx).
		Where("branch_id = ? AND active = ?", branchId, true).
		Order("created_at").
		Find(&promos).Error; err != nil {
		return nil, err
	}
	return promos, nil
}

func DeletePromotion(ctx context.Context, id string) error {
	return Delete[Promotion](ctx, id)
}
