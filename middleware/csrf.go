package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const (
	// CSRFCookieName is the cookie half of the double-submit pair.
	CSRFCookieName = "csrf_token"
	// CSRFHeaderName is the header half of the double-submit pair.
	CSRFHeaderName = "X-CSRF-Token"

	csrfTokenBytes = 32
)

// DoubleSubmitCSRF enforces the double-submit cookie pattern: mutating
// requests must carry the CSRF token both as a cookie and as a header,
// and the two must match. Safe methods pass through untouched.
//
// The check only defends deployments that transport tokens in cookies;
// pure bearer-token clients are immune to CSRF and can skip it.
func DoubleSubmitCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CSRFCookieName)
		if err != nil || cookie.Value == "" {
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		header := r.Header.Get(CSRFHeaderName)
		if header == "" {
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			http.Error(w, "csrf token mismatch", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IssueCSRFToken is a handler that mints a fresh CSRF token, sets it as
// a cookie, and echoes it in the JSON body so the client can replay it
// in the header.
func IssueCSRFToken(w http.ResponseWriter, r *http.Request) {
	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": token})
}
