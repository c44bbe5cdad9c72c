package guardian

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// Register creates a new account and signs it in. The email is normalized
// to lower case before storage and uniqueness checks. Returns
// [ErrEmailTaken] when the email is already registered.
func (e *Engine) Register(ctx context.Context, email, plaintext, name string) (*AuthResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	acc := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         RoleUser,
		Active:       true,
		LastLogin:    now,
		CreatedAt:    now,
	}

	if err := e.store.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", ErrEmailTaken, map[string]string{"email": email})
		}
		return nil, err
	}

	pair, err := e.issuePair(acc.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, true, acc.ID, nil, map[string]string{"email": email})

	return &AuthResult{
		TokenPair:         *pair,
		Account:           acc.Sanitize(),
		RequiresTwoFactor: acc.TwoFactorEnabled,
	}, nil
}

// Login verifies the email/password pair and issues tokens. Unknown
// emails, deactivated accounts, and wrong passwords all fail with
// [ErrInvalidCredentials]; a locked account fails with a [LockoutError]
// before the password is even checked.
//
// Failure bookkeeping (attempt counters, lock timestamps) is applied
// through [UserStore.Mutate] so concurrent attempts cannot lose updates.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*AuthResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)

	acc, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, map[string]string{"email": email})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now()
	if remaining := lockRemaining(acc, now); remaining > 0 {
		e.metricInc(MetricLoginLocked)
		lerr := lockoutError(remaining)
		e.emitAudit(ctx, auditEventLoginLocked, false, acc.ID, lerr, nil)
		return nil, lerr
	}

	if !acc.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, acc.ID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(plaintext, acc.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.recordLoginFailure(ctx, acc.ID, now)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, acc.ID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	var fresh *Account
	if err := e.store.Mutate(ctx, acc.ID, func(a *Account) error {
		applyLoginSuccess(a, now)
		fresh = a.Clone()
		return nil
	}); err != nil {
		return nil, err
	}

	pair, err := e.issuePair(fresh.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, fresh.ID, nil, nil)

	return &AuthResult{
		TokenPair:         *pair,
		Account:           fresh.Sanitize(),
		RequiresTwoFactor: fresh.TwoFactorEnabled,
	}, nil
}

// recordLoginFailure advances the lockout state machine. Bookkeeping
// errors are logged and swallowed: the caller still reports
// ErrInvalidCredentials to the client either way.
func (e *Engine) recordLoginFailure(ctx context.Context, id string, now time.Time) {
	err := e.store.Mutate(ctx, id, func(a *Account) error {
		applyLoginFailure(a, now, e.config.Lockout.MaxAttempts, e.config.Lockout.LockDuration)
		return nil
	})
	if err != nil {
		log.Printf("guardian: login failure bookkeeping for %s: %v", id, err)
	}
}
