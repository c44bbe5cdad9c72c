package guardian

import "time"

// lockRemaining returns how much longer the account is locked, or zero
// when it is not locked (including an expired lock).
func lockRemaining(acc *Account, now time.Time) time.Duration {
	if acc.LockUntil.IsZero() || !acc.LockUntil.After(now) {
		return 0
	}
	return acc.LockUntil.Sub(now)
}

// applyLoginFailure advances the lockout state machine after a wrong
// password. A failure arriving after a lock has expired starts a fresh
// window at one attempt; otherwise the counter increments and the account
// locks once it reaches the threshold.
func applyLoginFailure(acc *Account, now time.Time, threshold int, lockFor time.Duration) {
	if !acc.LockUntil.IsZero() && !acc.LockUntil.After(now) {
		acc.LoginAttempts = 1
		acc.LockUntil = time.Time{}
		return
	}

	acc.LoginAttempts++
	if acc.LoginAttempts >= threshold && acc.LockUntil.IsZero() {
		acc.LockUntil = now.Add(lockFor)
	}
}

// applyLoginSuccess resets the lockout state and stamps LastLogin.
func applyLoginSuccess(acc *Account, now time.Time) {
	acc.LoginAttempts = 0
	acc.LockUntil = time.Time{}
	acc.LastLogin = now
}
