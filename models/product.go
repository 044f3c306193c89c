package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/shweretail/posledger_backend/config"
	"bitbucket.org/shweretail/posledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	BranchId  string          `gorm:"index;size:36;not null" json:"branch_id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Sku       string          `gorm:"index;size:64;not null" json:"sku"`
	Barcode   string          `gorm:"size:64" json:"barcode"`
	Category  string          `gorm:"size:64" json:"category"`
	Emoji     string          `gorm:"size:16" json:"emoji"`
	CostPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	SellPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sell_price"`
	// Stock is only moved by stock-in, sale and refund transactions plus
	// explicit edits; it can never go below zero.
	Stock     int       `gorm:"not null;default:0" json:"stock"`
	MinStock  int       `gorm:"not null;default:0" json:"min_stock"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p Product) EntityKind() EntityKind { return KindProducts }
func (p Product) EntityId() string       { return p.ID }
func (p Product) BranchScope() string    { return p.BranchId }

type NewProduct struct {
	Name      string          `json:"name" validate:"required"`
	Sku       string          `json:"sku" validate:"required"`
	Barcode   string          `json:"barcode"`
	Category  string          `json:"category"`
	Emoji     string          `json:"emoji"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Stock     int             `json:"stock" validate:"gte=0"`
	MinStock  int             `json:"min_stock" validate:"gte=0"`
}

func (input *NewProduct) validate() error {
	if err := utils.ValidateInput(input); err != nil {
		return &ValidationError{Fields: utils.ProcessValidationErrors(err)}
	}
	if input.CostPrice.IsNegative() || input.SellPrice.IsNegative() {
		return NewValidationError("Price", "negative")
	}
	return nil
}

func CreateProduct(ctx context.Context, session Session, input *NewProduct) (*Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	product := Product{
		ID:        newId(),
		BranchId:  session.BranchId,
		Name:      strings.TrimSpace(input.Name),
		Sku:       strings.TrimSpace(input.Sku),
		Barcode:   strings.TrimSpace(input.Barcode),
		Category:  strings.TrimSpace(input.Category),
		Emoji:     input.Emoji,
		CostPrice: input.CostPrice,
		SellPrice: input.SellPrice,
		Stock:     input.Stock,
		MinStock:  input.MinStock,
	}
	if err := Put(ctx, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id string, input *NewProduct) (*Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	product, err := Get[Product](ctx, id)
	if err != nil {
		return nil, err
	}
	product.Name = strings.TrimSpace(input.Name)
	product.Sku = strings.TrimSpace(input.Sku)
	product.Barcode = strings.TrimSpace(input.Barcode)
	product.Category = strings.TrimSpace(input.Category)
	product.Emoji = input.Emoji
	product.CostPrice = input.CostPrice
	product.SellPrice = input.SellPrice
	product.Stock = input.Stock
	product.MinStock = input.MinStock
	if err := Put(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func GetProduct(ctx context.Context, id string) (*Product, error) {
	return Get[Product](ctx, id)
}

func GetProductBySku(ctx context.Context, branchId string, sku string) (*Product, error) {
	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).
		Where("branch_id = ? AND sku = ?", branchId, sku).
		Take(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func ListProducts(ctx context.Context, branchId string) ([]Product, error) {
	return List[Product](ctx, branchId)
}

// ListLowStockProducts feeds restock alerts and the dashboard read surface.
func ListLowStockProducts(ctx context.Context, branchId string) ([]Product, error) {
	db := config.GetDB()
	var products []Product
	if err := db.WithContext(ctx).
		Where("branch_id = ? AND stock <= min_stock", branchId).
		Order("stock").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func DeleteProduct(ctx context.Context, id string) error {
	return Delete[Product](ctx, id)
}
