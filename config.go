package guardian

import (
	"time"

	"github.com/rmaitland/guardian/password"
	"github.com/rmaitland/guardian/token"
)

// TokenConfig configures the token manager. Access and refresh tokens are
// signed with separate secrets so that a compromise of one class cannot
// forge the other.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// LockoutConfig tunes the failed-login lockout state machine.
type LockoutConfig struct {
	// MaxAttempts is the failure count at which the account locks.
	MaxAttempts int
	// LockDuration is how long the account stays locked.
	LockDuration time.Duration
}

// ResetConfig tunes password-reset tokens.
type ResetConfig struct {
	// TTL is the validity window of a reset token from issuance.
	TTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is
	// full. Dropped counts are visible via [Engine.AuditDropped].
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled bool
}

// Config is the complete engine configuration. It is passed explicitly to
// [Builder.WithConfig]; the engine never reads environment variables or
// other ambient state.
type Config struct {
	Token    TokenConfig
	Lockout  LockoutConfig
	Reset    ResetConfig
	Password password.Config
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// DefaultConfig returns the production defaults: 1h access tokens, 7d
// refresh tokens, lockout after 5 failures for 60 minutes, 10-minute
// reset tokens. Signing secrets have no default and must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Lockout: LockoutConfig{
			MaxAttempts:  5,
			LockDuration: 60 * time.Minute,
		},
		Reset: ResetConfig{
			TTL: 10 * time.Minute,
		},
		Password: password.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = append([]byte(nil), cfg.Token.AccessSecret...)
	out.Token.RefreshSecret = append([]byte(nil), cfg.Token.RefreshSecret...)
	return out
}

func (c Config) tokenConfig() token.Config {
	return token.Config{
		AccessSecret:  c.Token.AccessSecret,
		RefreshSecret: c.Token.RefreshSecret,
		AccessTTL:     c.Token.AccessTTL,
		RefreshTTL:    c.Token.RefreshTTL,
		Issuer:        c.Token.Issuer,
		Leeway:        c.Token.Leeway,
	}
}
