package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/auth"
)

// User is a clinic staff account. PasswordHash never leaves the service.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         auth.Role `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) Actor() auth.Actor {
	return auth.Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// snapshot is the audited view of a user.
type snapshot struct {
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	Role     auth.Role `json:"role"`
	Active   bool      `json:"active"`
}

func (u *User) snapshot() snapshot {
	return snapshot{Username: u.Username, FullName: u.FullName, Role: u.Role, Active: u.Active}
}

type UserFilter struct {
	Role   auth.Role
	Active *bool
	Query  string
}

type CreateUserInput struct {
	Username string    `json:"username" validate:"required,min=3,max=50"`
	Password string    `json:"password" validate:"required,min=8,max=72"`
	FullName string    `json:"full_name" validate:"required,max=200"`
	Role     auth.Role `json:"role" validate:"required,oneof=MANAGER DENTIST"`
}

type UpdateUserInput struct {
	FullName *string    `json:"full_name" validate:"omitempty,max=200"`
	Role     *auth.Role `json:"role" validate:"omitempty,oneof=MANAGER DENTIST"`
	Active   *bool      `json:"active"`
}

type ResetPasswordInput struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Me is the caller's own profile plus the permissions its role grants.
type Me struct {
	User        *User             `json:"user"`
	Permissions []auth.Permission `json:"permissions"`
}
