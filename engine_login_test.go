package guardian_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rmaitland/guardian"
)

func TestRegisterIssuesSession(t *testing.T) {
	engine, store := newTestEngine(t)

	res := register(t, engine, "New.User@Example.COM", "Aa1!aaaa")

	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if res.Account == nil {
		t.Fatal("expected a sanitized account")
	}
	if res.Account.Email != "new.user@example.com" {
		t.Fatalf("email = %q, want normalized form", res.Account.Email)
	}
	if res.Account.Role != guardian.RoleUser {
		t.Fatalf("role = %q, want %q", res.Account.Role, guardian.RoleUser)
	}
	if res.Account.LastLogin.IsZero() {
		t.Fatal("LastLogin not stamped at registration")
	}

	stored, err := store.GetByID(context.Background(), res.Account.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !stored.PasswordChangedAt.IsZero() {
		t.Fatal("PasswordChangedAt must stay zero at registration")
	}
}

func TestRegisterResponseLeaksNoCredentials(t *testing.T) {
	engine, store := newTestEngine(t)

	res := register(t, engine, "leak@example.com", "Aa1!aaaa")

	stored, err := store.GetByID(context.Background(), res.Account.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	payload, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}

	body := string(payload)
	for _, needle := range []string{"PasswordHash", "passwordHash", "argon2id", stored.PasswordHash} {
		if strings.Contains(body, needle) {
			t.Fatalf("serialized auth result contains %q", needle)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	engine, _ := newTestEngine(t)

	register(t, engine, "dup@example.com", "Aa1!aaaa")

	_, err := engine.Register(context.Background(), "DUP@example.com", "Bb2?bbbb", "Other")
	if !errors.Is(err, guardian.ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	engine, _ := newTestEngine(t)

	if _, err := engine.Register(context.Background(), "short@example.com", "Aa1!", "Short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestLoginSuccess(t *testing.T) {
	engine, _ := newTestEngine(t)

	register(t, engine, "login@example.com", "Aa1!aaaa")

	res, err := engine.Login(context.Background(), "LOGIN@example.com", "Aa1!aaaa")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}
	if res.Account.Email != "login@example.com" {
		t.Fatalf("email = %q", res.Account.Email)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	engine, _ := newTestEngine(t)

	register(t, engine, "probe@example.com", "Aa1!aaaa")

	_, unknownErr := engine.Login(context.Background(), "nobody@example.com", "Aa1!aaaa")
	_, wrongErr := engine.Login(context.Background(), "probe@example.com", "Wrong-pass-1")

	if !errors.Is(unknownErr, guardian.ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v", unknownErr)
	}
	if !errors.Is(wrongErr, guardian.ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("error messages differ: %q vs %q", unknownErr, wrongErr)
	}
}

func TestLoginCorruptedStoredDigest(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	res := register(t, engine, "corrupt@example.com", "Aa1!aaaa")

	// A damaged record must look like a wrong password, not a server
	// fault, and it still feeds the attempt counter.
	if err := store.Mutate(ctx, res.Account.ID, func(a *guardian.Account) error {
		a.PasswordHash = "not-a-phc-hash"
		return nil
	}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	if _, err := engine.Login(ctx, "corrupt@example.com", "Aa1!aaaa"); !errors.Is(err, guardian.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	stored, err := store.GetByID(ctx, res.Account.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.LoginAttempts != 1 {
		t.Fatalf("LoginAttempts = %d, want 1", stored.LoginAttempts)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	engine, store := newTestEngine(t)

	res := register(t, engine, "inactive@example.com", "Aa1!aaaa")

	if err := store.Mutate(context.Background(), res.Account.ID, func(a *guardian.Account) error {
		a.Active = false
		return nil
	}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	if _, err := engine.Login(context.Background(), "inactive@example.com", "Aa1!aaaa"); !errors.Is(err, guardian.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	res := register(t, engine, "lock@example.com", "Aa1!aaaa")

	for i := 0; i < 5; i++ {
		if _, err := engine.Login(ctx, "lock@example.com", "Wrong-pass-1"); !errors.Is(err, guardian.ErrInvalidCredentials) {
			t.Fatalf("attempt %d err = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	// The correct password no longer helps.
	_, err := engine.Login(ctx, "lock@example.com", "Aa1!aaaa")
	if !errors.Is(err, guardian.ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}

	var lockErr *guardian.LockoutError
	if !errors.As(err, &lockErr) {
		t.Fatalf("err %T does not carry lockout details", err)
	}
	if lockErr.MinutesRemaining < 59 || lockErr.MinutesRemaining > 60 {
		t.Fatalf("MinutesRemaining = %d, want ~60", lockErr.MinutesRemaining)
	}

	stored, err := store.GetByID(ctx, res.Account.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.LoginAttempts != 5 {
		t.Fatalf("LoginAttempts = %d, want 5", stored.LoginAttempts)
	}
	if stored.LockUntil.IsZero() {
		t.Fatal("LockUntil not set")
	}

	// The lockout gate runs before password verification, so the wrong
	// password gets the same lockout answer.
	if _, err := engine.Login(ctx, "lock@example.com", "Wrong-pass-1"); !errors.Is(err, guardian.ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}
}

func TestExpiredLockStartsFreshWindow(t *testing.T) {
	engine, store := newTestEngine(t, func(cfg *guardian.Config) {
		cfg.Lockout.MaxAttempts = 2
		cfg.Lockout.LockDuration = 40 * time.Millisecond
	})
	ctx := context.Background()

	res := register(t, engine, "window@example.com", "Aa1!aaaa")

	for i := 0; i < 2; i++ {
		engine.Login(ctx, "window@example.com", "Wrong-pass-1")
	}
	if _, err := engine.Login(ctx, "window@example.com", "Aa1!aaaa"); !errors.Is(err, guardian.ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}

	time.Sleep(60 * time.Millisecond)

	// After the lock expires, a failure counts as the first of a new
	// window rather than piling onto the old count.
	if _, err := engine.Login(ctx, "window@example.com", "Wrong-pass-1"); !errors.Is(err, guardian.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	stored, err := store.GetByID(ctx, res.Account.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.LoginAttempts != 1 {
		t.Fatalf("LoginAttempts = %d, want 1", stored.LoginAttempts)
	}
	if !stored.LockUntil.IsZero() {
		t.Fatal("expired lock not cleared on new failure")
	}

	// And a success clears everything.
	if _, err := engine.Login(ctx, "window@example.com", "Aa1!aaaa"); err != nil {
		t.Fatalf("Login after window reset: %v", err)
	}
	stored, _ = store.GetByID(ctx, res.Account.ID)
	if stored.LoginAttempts != 0 || !stored.LockUntil.IsZero() {
		t.Fatalf("counters not reset: attempts=%d lock=%v", stored.LoginAttempts, stored.LockUntil)
	}
}

func TestLoginSuccessResetsCounters(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	res := register(t, engine, "reset-counters@example.com", "Aa1!aaaa")

	for i := 0; i < 3; i++ {
		engine.Login(ctx, "reset-counters@example.com", "Wrong-pass-1")
	}

	before, _ := store.GetByID(ctx, res.Account.ID)
	if before.LoginAttempts != 3 {
		t.Fatalf("LoginAttempts = %d, want 3", before.LoginAttempts)
	}

	if _, err := engine.Login(ctx, "reset-counters@example.com", "Aa1!aaaa"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	after, _ := store.GetByID(ctx, res.Account.ID)
	if after.LoginAttempts != 0 {
		t.Fatalf("LoginAttempts = %d, want 0", after.LoginAttempts)
	}
	if !after.LastLogin.After(before.LastLogin) && !after.LastLogin.Equal(before.LastLogin) {
		t.Fatal("LastLogin not updated")
	}
}

func TestLoginReportsTwoFactorFlag(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	res := register(t, engine, "2fa@example.com", "Aa1!aaaa")

	if res.RequiresTwoFactor {
		t.Fatal("fresh account must not require a second factor")
	}

	if err := store.Mutate(ctx, res.Account.ID, func(a *guardian.Account) error {
		a.TwoFactorEnabled = true
		return nil
	}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	loggedIn, err := engine.Login(ctx, "2fa@example.com", "Aa1!aaaa")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !loggedIn.RequiresTwoFactor {
		t.Fatal("RequiresTwoFactor flag not surfaced")
	}
}

func TestLoginMetrics(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	register(t, engine, "metrics@example.com", "Aa1!aaaa")
	engine.Login(ctx, "metrics@example.com", "Wrong-pass-1")
	engine.Login(ctx, "metrics@example.com", "Aa1!aaaa")

	snap := engine.MetricsSnapshot()
	if snap.Counters[guardian.MetricLoginSuccess] != 1 {
		t.Fatalf("login success counter = %d, want 1", snap.Counters[guardian.MetricLoginSuccess])
	}
	if snap.Counters[guardian.MetricLoginFailure] != 1 {
		t.Fatalf("login failure counter = %d, want 1", snap.Counters[guardian.MetricLoginFailure])
	}
	if snap.Counters[guardian.MetricRegisterSuccess] != 1 {
		t.Fatalf("register counter = %d, want 1", snap.Counters[guardian.MetricRegisterSuccess])
	}
}
