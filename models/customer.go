package models

import (
	"context"
	"os"
	"strings"
	"time"

	"bitbucket.org/shweretail/posledger_backend/utils"
	"github.com/shopspring/decimal"
)

// Customer totals are only ever advanced inside recordSale's transaction;
// they are running counters, never recomputed from history.
type Customer struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	BranchId   string          `gorm:"index;size:36;not null" json:"branch_id"`
	Name       string          `gorm:"size:255;not null" json:"name"`
	Phone      string          `gorm:"size:32" json:"phone"`
	TotalSpent decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_spent"`
	VisitCount int             `gorm:"not null;default:0" json:"visit_count"`
	Points     int64           `gorm:"not null;default:0" json:"points"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c Customer) EntityKind() EntityKind { return KindCustomers }
func (c Customer) EntityId() string       { return c.ID }
func (c Customer) BranchScope() string    { return c.BranchId }

type NewCustomer struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

// customerCountryCode scopes phone validation; registers in other markets
// set CUSTOMER_PHONE_REGION.
func customerCountryCode() string {
	if region := strings.TrimSpace(os.Getenv("CUSTOMER_PHONE_REGION")); region != "" {
		return region
	}
	return "MM"
}

func validateCustomerPhone(phone string) error {
	if phone == "" {
		return nil
	}
	if err := utils.ValidatePhoneNumber(phone, customerCountryCode()); err != nil {
		return NewValidationError("Phone", err.Error())
	}
	return nil
}

func CreateCustomer(ctx context.Context, session Session, input *NewCustomer) (*Customer, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, &ValidationError{Fields: utils.ProcessValidationErrors(err)}
	}
	if err := validateCustomerPhone(strings.TrimSpace(input.Phone)); err != nil {
		return nil, err
	}

	customer := Customer{
		ID:         newId(),
		BranchId:   session.BranchId,
		Name:       strings.TrimSpace(input.Name),
		Phone:      strings.TrimSpace(input.Phone),
		TotalSpent: decimal.Zero,
	}
	if err := Put(ctx, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func GetCustomer(ctx context.Context, id string) (*Customer, error) {
	return Get[Customer](ctx, id)
}

func ListCustomers(ctx context.Context, branchId string) ([]Customer, error) {
	return List[Customer](ctx, branchId)
}

func UpdateCustomer(ctx context.Context, id string, input *NewCustomer) (*Customer, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, &ValidationError{Fields: utils.ProcessValidationErrors(err)}
	}
	if err := validateCustomerPhone(strings.TrimSpace(input.Phone)); err != nil {
		return nil, err
	}
	customer, err := Get[Customer](ctx, id)
	if err != nil {
		return nil, err
	}
	customer.Name = strings.TrimSpace(input.Name)
	customer.Phone = strings.TrimSpace(input.Phone)
	if err := Put(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}
