// Package token issues and verifies the HS256 access and refresh tokens
// used by the authentication engine. The two token classes are signed
// with separate secrets and never verify against each other's key.
package token
