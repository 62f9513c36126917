package domain

import (
	"time"
)

// TenantUnassigned is the tenant placeholder for self-registered accounts
// that have not yet been claimed by an admin.
const TenantUnassigned = "unassigned"

// User represents an account in the CRM.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone,omitempty"`
	Role         string     `json:"role"`
	TenantID     string     `json:"tenant_id"`
	CreatedBy    string     `json:"created_by,omitempty"`
	IsDeleted    bool       `json:"is_deleted"`
	DeletedBy    *string    `json:"deleted_by,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RefreshToken represents a stored refresh token for a login session,
// keyed by the jti claim embedded in the token.
type RefreshToken struct {
	JTI       string    `json:"jti"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
