package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rmaitland/guardian"
)

type accountContextKey struct{}

// AccountFromContext returns the account attached by [Guard].
func AccountFromContext(ctx context.Context) (*guardian.SafeAccount, bool) {
	acc, ok := ctx.Value(accountContextKey{}).(*guardian.SafeAccount)
	return acc, ok
}

// Guard rejects requests without a valid bearer access token and attaches
// the authenticated account to the request context.
func Guard(engine *guardian.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			acc, err := engine.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey{}, acc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows only accounts whose role is in roles. It must run
// after [Guard]; a request with no attached account is unauthorized.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc, ok := AccountFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[acc.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
