package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserRole distinguishes regular savers from operators.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is an account holder.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin returns true for operator accounts.
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// UserSummary identifies one side of a transaction in listings.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserWithWallets is a user together with every wallet they hold.
type UserWithWallets struct {
	User
	Wallets []Wallet `json:"wallets"`
}
