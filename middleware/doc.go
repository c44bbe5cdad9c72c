// Package middleware adapts the authentication engine to net/http:
// bearer-token guarding, role checks, and double-submit CSRF protection
// for cookie-based deployments.
package middleware
