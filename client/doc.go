// Package client keeps a session alive from the consumer side. The
// Scheduler refreshes the token pair on a fixed interval, well inside
// the access token's lifetime, so callers always hold a token that will
// not expire mid-request.
package client
