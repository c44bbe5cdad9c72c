package guardian

import (
	"context"
	"strings"
	"time"
)

const (
	// RoleUser is the default role assigned at registration.
	RoleUser = "user"
	// RoleAdmin marks administrative accounts.
	RoleAdmin = "admin"
)

// Account is the full identity record owned by the [UserStore]. It carries
// the credential hash, lockout counters, and pending reset-token state.
// Accounts never cross the API boundary directly; [Account.Sanitize]
// produces the outward representation.
type Account struct {
	ID                string
	Email             string
	Name              string
	PasswordHash      string
	Role              string
	Active            bool
	LastLogin         time.Time
	PasswordChangedAt time.Time
	LoginAttempts     int
	LockUntil         time.Time
	ResetTokenHash    string
	ResetTokenExpires time.Time
	TwoFactorEnabled  bool
	TwoFactorSecret   string
	CreatedAt         time.Time
}

// Clone returns a deep copy. Store adapters hand out clones so callers
// never alias the stored record.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// ChangedPasswordAfter reports whether the password was changed after t.
// Comparison is at whole-second precision because token issued-at claims
// carry second resolution on the wire.
func (a *Account) ChangedPasswordAfter(t time.Time) bool {
	if a.PasswordChangedAt.IsZero() {
		return false
	}
	return t.Unix() < a.PasswordChangedAt.Unix()
}

// Sanitize strips everything that must not leave the server: the password
// hash, the two-factor secret, and the reset-token state.
func (a *Account) Sanitize() *SafeAccount {
	return &SafeAccount{
		ID:               a.ID,
		Email:            a.Email,
		Name:             a.Name,
		Role:             a.Role,
		LastLogin:        a.LastLogin,
		TwoFactorEnabled: a.TwoFactorEnabled,
		CreatedAt:        a.CreatedAt,
	}
}

// SafeAccount is the account representation returned across the API
// boundary. It has no credential-bearing fields by construction.
type SafeAccount struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Role             string    `json:"role"`
	LastLogin        time.Time `json:"lastLogin"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	CreatedAt        time.Time `json:"createdAt"`
}

// TokenPair is an access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by [Engine.Register] and [Engine.Login].
type AuthResult struct {
	TokenPair
	Account *SafeAccount `json:"user"`

	// RequiresTwoFactor mirrors the account's stored flag. No second
	// factor is verified here; the flag is informational for clients.
	RequiresTwoFactor bool `json:"requiresTwoFactor,omitempty"`
}

// UserStore is the persistence contract callers must implement to
// integrate guardian with their user database. Package userstore ships
// in-memory and Redis reference adapters.
//
// Lookups return [ErrAccountNotFound] on a miss and Create returns
// [ErrEmailTaken] when the email (case-insensitive) is already indexed.
// Implementations must hand out copies: mutating a returned Account must
// not affect the stored record.
type UserStore interface {
	Create(ctx context.Context, acc *Account) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByResetHash(ctx context.Context, resetHash string) (*Account, error)

	// Mutate applies fn to the current account record and persists the
	// result as one atomic read-modify-write: concurrent Mutate calls on
	// the same account must never lose an update. An error from fn aborts
	// the mutation and is returned unchanged.
	Mutate(ctx context.Context, id string, fn func(*Account) error) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
