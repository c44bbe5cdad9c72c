// Package guardian implements credential verification with brute-force
// lockout, issuance and rotation of signed access/refresh token pairs,
// and one-time password-reset tokens.
//
// # Architecture
//
// The [Engine] is the public contract. It composes a password hasher
// (argon2id, package password), a stateless token manager (HS256 JWT,
// package token), and an abstract [UserStore] supplied by the caller.
// Engines are constructed through [Builder] and are immutable after
// [Builder.Build]; every method is safe for concurrent use.
//
// # State model
//
// Tokens are stateless: the server keeps no session records and no
// revocation list. Logout is client-side token discard; the only global
// invalidation lever is the account's PasswordChangedAt timestamp, which
// causes tokens minted before a password change to be rejected as stale.
// Lockout state is derived entirely from the LoginAttempts counter and
// LockUntil timestamp on the [Account]; the [UserStore.Mutate] contract
// makes those read-modify-write cycles atomic.
//
// # Sub-packages
//
//   - token — access/refresh JWT manager with separate signing secrets
//   - password — argon2id hashing with PHC-encoded digests
//   - userstore — in-memory and Redis-backed [UserStore] adapters
//   - client — caller-side silent-refresh scheduler
//   - middleware — net/http guard, role check, double-submit CSRF
package guardian
