package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/shweretail/posledger_backend/utils"
	"github.com/google/uuid"
)

type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	BranchId  string    `gorm:"index;size:36;not null" json:"branch_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Role      UserRole  `gorm:"size:16;not null" json:"role"`
	PinHash   string    `gorm:"size:128" json:"pin_hash"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u User) EntityKind() EntityKind { return KindUsers }
func (u User) EntityId() string       { return u.ID }
func (u User) BranchScope() string    { return u.BranchId }

type NewUser struct {
	Name string   `json:"name" validate:"required"`
	Role UserRole `json:"role" validate:"required"`
	Pin  string   `json:"pin" validate:"required,min=4,max=8,numeric"`
}

func CreateUser(ctx context.Context, session Session, input *NewUser) (*User, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, &ValidationError{Fields: utils.ProcessValidationErrors(err)}
	}
	if !validRole(input.Role) {
		return nil, NewValidationError("Role", "invalid")
	}

	hash, err := utils.HashPin(input.Pin)
	if err != nil {
		return nil, err
	}

	user := User{
		ID:       uuid.NewString(),
		BranchId: session.BranchId,
		Name:     strings.TrimSpace(input.Name),
		Role:     input.Role,
		PinHash:  string(hash),
		Active:   true,
	}
	if err := Put(ctx, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyUserPin resolves a user by id and checks their PIN. The PIN entry UI
// lives outside this module; this is its only hook.
func VerifyUserPin(ctx context.Context, userId string, pin string) (*User, error) {
	user, err := Get[User](ctx, userId)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrNotFound
	}
	if err := utils.ComparePin(user.PinHash, pin); err != nil {
		return nil, NewValidationError("Pin", "mismatch")
	}
	return user, nil
}

func ListUsers(ctx context.Context, branchId string) ([]User, error) {
	return List[User](ctx, branchId)
}

func validRole(r UserRole) bool {
	return r == UserRoleAdmin || r == UserRoleCashier
}
