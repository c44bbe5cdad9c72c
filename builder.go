package guardian

import (
	"errors"

	"github.com/rmaitland/guardian/internal/metrics"
	"github.com/rmaitland/guardian/password"
	"github.com/rmaitland/guardian/token"
)

// Builder assembles an [Engine]. The zero value is not usable; start from
// [New].
type Builder struct {
	config Config
	store  UserStore
	sink   AuditSink

	built bool
}

// New returns a Builder preloaded with [DefaultConfig]. Callers must still
// supply signing secrets and a [UserStore].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the credential store the engine reads and mutates
// accounts through. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithAuditSink sets the destination for audit events. Ignored when
// auditing is disabled in the config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles the in-process metrics counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and constructs the Engine. A Builder
// can build at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("user store is required")
	}
	if b.config.Lockout.MaxAttempts <= 0 {
		return nil, errors.New("lockout max attempts must be positive")
	}
	if b.config.Lockout.LockDuration <= 0 {
		return nil, errors.New("lockout duration must be positive")
	}
	if b.config.Reset.TTL <= 0 {
		return nil, errors.New("reset token TTL must be positive")
	}

	tokens, err := token.NewManager(b.config.tokenConfig())
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(b.config.Password)
	if err != nil {
		return nil, err
	}

	b.built = true

	return &Engine{
		config:  b.config,
		store:   b.store,
		tokens:  tokens,
		hasher:  hasher,
		audit:   newAuditDispatcher(b.config.Audit, b.sink),
		metrics: metrics.New(metrics.Config{Enabled: b.config.Metrics.Enabled}),
	}, nil
}
