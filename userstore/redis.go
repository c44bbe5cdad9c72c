package userstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rmaitland/guardian"
)

const defaultPrefix = "guardian"

// mutateMaxRetries bounds WATCH retries under contention. Sixteen is
// generous: each retry re-reads the record, so a retry only repeats when
// another writer commits between read and EXEC.
const mutateMaxRetries = 16

// Redis persists accounts as JSON records with secondary indexes for
// email and pending reset-token hash lookups.
//
// Keys, under the configured prefix:
//
//	<prefix>:acct:<id>     account record
//	<prefix>:email:<email> account id, written with SETNX for uniqueness
//	<prefix>:reset:<hash>  account id, expires with the reset token
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{
		client: client,
		prefix: prefix,
	}
}

func (r *Redis) acctKey(id string) string {
	return r.prefix + ":acct:" + id
}

func (r *Redis) emailKey(email string) string {
	return r.prefix + ":email:" + email
}

func (r *Redis) resetKey(hash string) string {
	return r.prefix + ":reset:" + hash
}

func (r *Redis) Create(ctx context.Context, acc *guardian.Account) error {
	stored := acc.Clone()
	stored.Email = normalizeEmail(stored.Email)

	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	// The email index is the uniqueness gate: whoever wins the SETNX owns
	// the address.
	ok, err := r.client.SetNX(ctx, r.emailKey(stored.Email), stored.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	if !ok {
		return guardian.ErrEmailTaken
	}

	if err := r.client.Set(ctx, r.acctKey(stored.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	return nil
}

func (r *Redis) GetByEmail(ctx context.Context, email string) (*guardian.Account, error) {
	id, err := r.client.Get(ctx, r.emailKey(normalizeEmail(email))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, guardian.ErrAccountNotFound
		}
		return nil, fmt.Errorf("store unavailable: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *Redis) GetByID(ctx context.Context, id string) (*guardian.Account, error) {
	data, err := r.client.Get(ctx, r.acctKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, guardian.ErrAccountNotFound
		}
		return nil, fmt.Errorf("store unavailable: %w", err)
	}

	var acc guardian.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *Redis) GetByResetHash(ctx context.Context, resetHash string) (*guardian.Account, error) {
	if resetHash == "" {
		return nil, guardian.ErrAccountNotFound
	}

	id, err := r.client.Get(ctx, r.resetKey(resetHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, guardian.ErrAccountNotFound
		}
		return nil, fmt.Errorf("store unavailable: %w", err)
	}

	acc, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// The index can outlive a consumed token; trust the record.
	if acc.ResetTokenHash != resetHash {
		return nil, guardian.ErrAccountNotFound
	}
	return acc, nil
}

func (r *Redis) Mutate(ctx context.Context, id string, fn func(*guardian.Account) error) error {
	key := r.acctKey(id)

	for i := 0; i < mutateMaxRetries; i++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			var current guardian.Account
			if err := json.Unmarshal(data, &current); err != nil {
				return err
			}

			next := current.Clone()
			if err := fn(next); err != nil {
				return err
			}
			next.ID = current.ID
			next.Email = normalizeEmail(next.Email)

			updated, err := json.Marshal(next)
			if err != nil {
				return err
			}

			oldEmail := normalizeEmail(current.Email)
			if next.Email != oldEmail {
				owner, err := tx.Get(ctx, r.emailKey(next.Email)).Result()
				if err != nil && !errors.Is(err, redis.Nil) {
					return err
				}
				if err == nil && owner != id {
					return guardian.ErrEmailTaken
				}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)

				if next.Email != oldEmail {
					pipe.Del(ctx, r.emailKey(oldEmail))
					pipe.Set(ctx, r.emailKey(next.Email), id, 0)
				}

				if next.ResetTokenHash != current.ResetTokenHash {
					if current.ResetTokenHash != "" {
						pipe.Del(ctx, r.resetKey(current.ResetTokenHash))
					}
					if next.ResetTokenHash != "" {
						if ttl := time.Until(next.ResetTokenExpires); ttl > 0 {
							pipe.Set(ctx, r.resetKey(next.ResetTokenHash), id, ttl)
						}
					}
				}
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return guardian.ErrAccountNotFound
		}
		return err
	}

	return errors.New("mutation retries exhausted")
}
