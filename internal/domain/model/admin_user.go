package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wifi-voucher-portal/internal/domain"
)

type AdminRole string

const (
	RoleSuperAdmin AdminRole = "super_admin"
	RoleAdmin      AdminRole = "admin"
	RoleOperator   AdminRole = "operator"
)

func (r AdminRole) Valid() bool {
	return r == RoleSuperAdmin || r == RoleAdmin || r == RoleOperator
}

// rank orders roles so that a higher role satisfies a lower requirement.
func (r AdminRole) rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleOperator:
		return 1
	}
	return 0
}

// Satisfies reports whether r is at least min.
func (r AdminRole) Satisfies(min AdminRole) bool {
	return r.rank() >= min.rank() && r.rank() > 0
}

// AdminUser is a back-office account.
type AdminUser struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Role         AdminRole  `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewAdminUser validates and constructs an active admin. passwordHash must
// already be hashed.
func NewAdminUser(username, email, fullName string, role AdminRole, passwordHash string) (*AdminUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || passwordHash == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidArgument)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidArgument, role)
	}
	now := time.Now()
	return &AdminUser{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
