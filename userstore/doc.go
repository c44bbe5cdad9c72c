// Package userstore ships the reference implementations of the engine's
// account store contract: an in-memory store for tests and small
// deployments, and a Redis-backed store for shared state.
//
// Both stores hand out deep copies and implement Mutate as an atomic
// read-modify-write. The Redis store uses WATCH/MULTI optimistic
// transactions with automatic retry on contention, so concurrent
// mutations of the same account never lose updates.
package userstore
