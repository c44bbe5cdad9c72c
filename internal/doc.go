// Package internal holds helpers shared by the engine packages:
// reset-secret generation and hashing. Nothing here is part of the
// public API.
package internal
