package guardian_test

import (
	"context"
	"testing"

	"github.com/rmaitland/guardian"
	"github.com/rmaitland/guardian/password"
	"github.com/rmaitland/guardian/userstore"
)

// fastConfig keeps argon2 at its enforced minimums so engine tests do
// not spend their time hashing.
func fastConfig() guardian.Config {
	cfg := guardian.DefaultConfig()
	cfg.Token.AccessSecret = []byte("access-secret-for-tests-0123456789")
	cfg.Token.RefreshSecret = []byte("refresh-secret-for-tests-0123456789")
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, mutations ...func(*guardian.Config)) (*guardian.Engine, *userstore.Memory) {
	t.Helper()

	cfg := fastConfig()
	for _, mutate := range mutations {
		mutate(&cfg)
	}

	store := userstore.NewMemory()
	engine, err := guardian.New().
		WithConfig(cfg).
		WithUserStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store
}

func register(t *testing.T, engine *guardian.Engine, email, pass string) *guardian.AuthResult {
	t.Helper()

	res, err := engine.Register(context.Background(), email, pass, "Test User")
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res
}

func TestBuilderRequiresStore(t *testing.T) {
	if _, err := guardian.New().WithConfig(fastConfig()).Build(); err == nil {
		t.Fatal("expected Build without a store to fail")
	}
}

func TestBuilderRequiresSecrets(t *testing.T) {
	cfg := fastConfig()
	cfg.Token.AccessSecret = nil

	_, err := guardian.New().
		WithConfig(cfg).
		WithUserStore(userstore.NewMemory()).
		Build()
	if err == nil {
		t.Fatal("expected Build without secrets to fail")
	}
}

func TestBuilderRejectsEqualSecrets(t *testing.T) {
	cfg := fastConfig()
	cfg.Token.RefreshSecret = append([]byte(nil), cfg.Token.AccessSecret...)

	_, err := guardian.New().
		WithConfig(cfg).
		WithUserStore(userstore.NewMemory()).
		Build()
	if err == nil {
		t.Fatal("expected Build with equal secrets to fail")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := guardian.New().WithConfig(fastConfig()).WithUserStore(userstore.NewMemory())
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}
