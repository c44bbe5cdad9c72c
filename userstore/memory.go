package userstore

import (
	"context"
	"strings"
	"sync"

	"github.com/rmaitland/guardian"
)

// Memory is a map-backed account store. It is safe for concurrent use
// and intended for tests and single-process deployments.
type Memory struct {
	mu      sync.Mutex
	byID    map[string]*guardian.Account
	byEmail map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[string]*guardian.Account),
		byEmail: make(map[string]string),
	}
}

func (m *Memory) Create(ctx context.Context, acc *guardian.Account) error {
	email := normalizeEmail(acc.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byEmail[email]; taken {
		return guardian.ErrEmailTaken
	}
	if _, exists := m.byID[acc.ID]; exists {
		return guardian.ErrEmailTaken
	}

	stored := acc.Clone()
	stored.Email = email
	m.byID[stored.ID] = stored
	m.byEmail[email] = stored.ID

	return nil
}

func (m *Memory) GetByEmail(ctx context.Context, email string) (*guardian.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, guardian.ErrAccountNotFound
	}
	return m.byID[id].Clone(), nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (*guardian.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.byID[id]
	if !ok {
		return nil, guardian.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (m *Memory) GetByResetHash(ctx context.Context, resetHash string) (*guardian.Account, error) {
	if resetHash == "" {
		return nil, guardian.ErrAccountNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, acc := range m.byID {
		if acc.ResetTokenHash == resetHash {
			return acc.Clone(), nil
		}
	}
	return nil, guardian.ErrAccountNotFound
}

func (m *Memory) Mutate(ctx context.Context, id string, fn func(*guardian.Account) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byID[id]
	if !ok {
		return guardian.ErrAccountNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	next.ID = current.ID

	oldEmail := normalizeEmail(current.Email)
	newEmail := normalizeEmail(next.Email)
	if newEmail != oldEmail {
		if _, taken := m.byEmail[newEmail]; taken {
			return guardian.ErrEmailTaken
		}
		delete(m.byEmail, oldEmail)
		m.byEmail[newEmail] = id
	}
	next.Email = newEmail

	m.byID[id] = next
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
