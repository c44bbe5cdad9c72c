package guardian

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike, so callers cannot probe which emails exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountLocked is the sentinel matched by [LockoutError].
	ErrAccountLocked = errors.New("account locked")
	// ErrEmailTaken is returned by Register when the email is in use.
	ErrEmailTaken = errors.New("email already in use")
	// ErrAccountNotFound is returned by [UserStore] lookups that miss.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTokenInvalid covers malformed tokens and bad signatures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired covers well-formed, correctly signed tokens past
	// their expiry. Recoverable: the caller should attempt a refresh.
	ErrTokenExpired = errors.New("token expired")
	// ErrStaleToken covers correctly signed tokens issued before the
	// account's last password change. Not recoverable via refresh.
	ErrStaleToken = errors.New("token issued before password change")
	// ErrResetTokenInvalid covers mismatched, expired, and already-used
	// reset tokens without distinguishing which check failed.
	ErrResetTokenInvalid = errors.New("invalid or expired reset token")
	// ErrWrongPassword is returned by ChangePassword when the current
	// password does not verify.
	ErrWrongPassword = errors.New("current password is incorrect")
	// ErrEngineNotReady is an exported sentinel reported by Engine
	// methods invoked on a nil or incompletely built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockoutError reports a rejected login attempt against a locked account.
// It matches [ErrAccountLocked] under [errors.Is] and carries the remaining
// lock duration rounded up to whole minutes for retry-after messages.
type LockoutError struct {
	MinutesRemaining int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account is locked, try again in %d minutes", e.MinutesRemaining)
}

func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}

func lockoutError(remaining time.Duration) *LockoutError {
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return &LockoutError{MinutesRemaining: minutes}
}
