package guardian

import (
	"context"
	"errors"
	"time"

	"github.com/rmaitland/guardian/internal/metrics"
	"github.com/rmaitland/guardian/password"
	"github.com/rmaitland/guardian/token"
)

// Engine is the authentication orchestrator. Configure it through
// [Builder] and treat it as immutable afterwards; all methods are safe
// for concurrent use.
type Engine struct {
	config  Config
	store   UserStore
	tokens  *token.Manager
	hasher  *password.Argon2
	audit   *auditDispatcher
	metrics *metrics.Metrics
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Validate verifies an access token and returns the authenticated account
// in sanitized form. Fails with [ErrTokenInvalid], [ErrTokenExpired],
// [ErrStaleToken], or [ErrAccountNotFound].
func (e *Engine) Validate(ctx context.Context, accessToken string) (*SafeAccount, error) {
	acc, err := e.accountFromAccessToken(ctx, accessToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, err
	}

	e.metricInc(MetricValidateSuccess)
	return acc.Sanitize(), nil
}

// Refresh exchanges a valid refresh token for a new access/refresh pair.
// A refresh token issued before the account's last password change is
// rejected with [ErrStaleToken] even though its signature verifies.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", mapTokenErr(err), nil)
		return nil, mapTokenErr(err)
	}

	acc, err := e.store.GetByID(ctx, claims.Subject)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventRefreshFailure, false, claims.Subject, ErrAccountNotFound, nil)
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if !acc.Active {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, acc.ID, ErrAccountNotFound, nil)
		return nil, ErrAccountNotFound
	}
	if acc.ChangedPasswordAfter(claims.IssuedAt) {
		e.metricInc(MetricStaleTokenRejected)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, acc.ID, ErrStaleToken, nil)
		return nil, ErrStaleToken
	}

	pair, err := e.issuePair(acc.ID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, acc.ID, nil, nil)
	return pair, nil
}

// Logout acknowledges a client-side logout and refreshes the account's
// LastLogin bookkeeping. There is no server-side revocation list: the
// presented tokens stay structurally valid until their natural expiry,
// and discarding them is the caller's responsibility.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	acc, err := e.accountFromAccessToken(ctx, accessToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogout, false, "", err, nil)
		return err
	}

	if err := e.store.Mutate(ctx, acc.ID, func(a *Account) error {
		a.LastLogin = time.Now()
		return nil
	}); err != nil {
		e.emitAudit(ctx, auditEventLogout, false, acc.ID, err, nil)
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, acc.ID, nil, nil)
	return nil
}

// accountFromAccessToken resolves an access token to the full account
// record, enforcing signature, expiry, staleness, and account existence.
func (e *Engine) accountFromAccessToken(ctx context.Context, accessToken string) (*Account, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, mapTokenErr(err)
	}

	acc, err := e.store.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if !acc.Active {
		return nil, ErrAccountNotFound
	}
	if acc.ChangedPasswordAfter(claims.IssuedAt) {
		e.metricInc(MetricStaleTokenRejected)
		return nil, ErrStaleToken
	}

	return acc, nil
}

func (e *Engine) issuePair(subject string) (*TokenPair, error) {
	access, err := e.tokens.IssueAccess(subject)
	if err != nil {
		return nil, err
	}

	refresh, err := e.tokens.IssueRefresh(subject)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func mapTokenErr(err error) error {
	if errors.Is(err, token.ErrExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}
