package guardian

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/rmaitland/guardian/internal"
)

// ChangePassword rotates the password of the account behind accessToken
// after re-verifying the current password. Returns [ErrWrongPassword]
// when the current password does not match.
//
// Existing tokens for the account become stale after the change and are
// rejected at validation and refresh; the returned pair replaces them.
func (e *Engine) ChangePassword(ctx context.Context, accessToken, current, next string) (*TokenPair, error) {
	acc, err := e.accountFromAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	ok, err := e.hasher.Verify(current, acc.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChange, false, acc.ID, ErrWrongPassword, nil)
		return nil, ErrWrongPassword
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := e.store.Mutate(ctx, acc.ID, func(a *Account) error {
		setPassword(a, hash, now)
		return nil
	}); err != nil {
		return nil, err
	}

	pair, err := e.issuePair(acc.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, acc.ID, nil, nil)
	return pair, nil
}

// RequestPasswordReset issues a single-use reset token for the account
// with the given email and returns the plaintext token for out-of-band
// delivery. Only its SHA-256 digest is persisted. An unknown email
// returns ("", nil) so the endpoint cannot be used to probe registration.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e == nil || e.store == nil {
		return "", ErrEngineNotReady
	}

	email = normalizeEmail(email)

	acc, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricResetRequest)
			return "", nil
		}
		return "", err
	}

	plaintext, digest, err := internal.NewResetSecret()
	if err != nil {
		return "", err
	}

	expires := time.Now().Add(e.config.Reset.TTL)
	if err := e.store.Mutate(ctx, acc.ID, func(a *Account) error {
		a.ResetTokenHash = digest
		a.ResetTokenExpires = expires
		return nil
	}); err != nil {
		return "", err
	}

	e.metricInc(MetricResetRequest)
	e.emitAudit(ctx, auditEventResetRequest, true, acc.ID, nil, nil)
	return plaintext, nil
}

// ConfirmPasswordReset consumes a reset token and sets a new password,
// then signs the account in. Mismatched, expired, and already-used tokens
// all fail with [ErrResetTokenInvalid].
func (e *Engine) ConfirmPasswordReset(ctx context.Context, resetToken, next string) (*AuthResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	digest := internal.HashResetSecret(resetToken)

	acc, err := e.store.GetByResetHash(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metricInc(MetricResetConfirmFailure)
			e.emitAudit(ctx, auditEventResetConfirm, false, "", ErrResetTokenInvalid, nil)
			return nil, ErrResetTokenInvalid
		}
		return nil, err
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var fresh *Account
	if err := e.store.Mutate(ctx, acc.ID, func(a *Account) error {
		// Re-check against the current record inside the transaction: the
		// token may have been consumed or replaced since the lookup.
		if subtle.ConstantTimeCompare([]byte(a.ResetTokenHash), []byte(digest)) != 1 {
			return ErrResetTokenInvalid
		}
		if a.ResetTokenExpires.IsZero() || !a.ResetTokenExpires.After(now) {
			return ErrResetTokenInvalid
		}
		setPassword(a, hash, now)
		applyLoginSuccess(a, now)
		fresh = a.Clone()
		return nil
	}); err != nil {
		if errors.Is(err, ErrResetTokenInvalid) {
			e.metricInc(MetricResetConfirmFailure)
			e.emitAudit(ctx, auditEventResetConfirm, false, acc.ID, ErrResetTokenInvalid, nil)
		}
		return nil, err
	}

	pair, err := e.issuePair(fresh.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricResetConfirmSuccess)
	e.emitAudit(ctx, auditEventResetConfirm, true, fresh.ID, nil, nil)

	return &AuthResult{
		TokenPair:         *pair,
		Account:           fresh.Sanitize(),
		RequiresTwoFactor: fresh.TwoFactorEnabled,
	}, nil
}

// setPassword installs a new hash, invalidates any pending reset token,
// and backdates PasswordChangedAt by one second so tokens issued in the
// same instant as the change still pass the staleness check.
func setPassword(acc *Account, hash string, now time.Time) {
	acc.PasswordHash = hash
	acc.PasswordChangedAt = now.Add(-time.Second)
	acc.ResetTokenHash = ""
	acc.ResetTokenExpires = time.Time{}
}
