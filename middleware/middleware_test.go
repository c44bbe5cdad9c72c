package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rmaitland/guardian"
	"github.com/rmaitland/guardian/password"
	"github.com/rmaitland/guardian/userstore"
)

func newTestEngine(t *testing.T) (*guardian.Engine, string) {
	t.Helper()

	cfg := guardian.DefaultConfig()
	cfg.Token.AccessSecret = []byte("access-secret-for-tests-0123456789")
	cfg.Token.RefreshSecret = []byte("refresh-secret-for-tests-0123456789")
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	cfg.Audit.Enabled = false

	engine, err := guardian.New().
		WithConfig(cfg).
		WithUserStore(userstore.NewMemory()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	res, err := engine.Register(context.Background(), "mw@example.com", "Sup3r-Secret", "MW User")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	return engine, res.AccessToken
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardAllowsValidToken(t *testing.T) {
	engine, access := newTestEngine(t)

	var gotRole string
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, ok := AccountFromContext(r.Context())
		if !ok {
			t.Error("account missing from context")
		} else {
			gotRole = acc.Role
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotRole != guardian.RoleUser {
		t.Fatalf("role = %q, want %q", gotRole, guardian.RoleUser)
	}
}

func TestGuardRejectsBadRequests(t *testing.T) {
	engine, _ := newTestEngine(t)
	handler := Guard(engine)(okHandler())

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	engine, access := newTestEngine(t)

	adminOnly := Guard(engine)(RequireRole(guardian.RoleAdmin)(okHandler()))
	userAllowed := Guard(engine)(RequireRole(guardian.RoleUser, guardian.RoleAdmin)(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	adminOnly.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin-only status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/area", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec = httptest.NewRecorder()
	userAllowed.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("user-allowed status = %d, want 200", rec.Code)
	}
}

func TestRequireRoleWithoutGuard(t *testing.T) {
	handler := RequireRole(guardian.RoleUser)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/area", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestDoubleSubmitCSRF(t *testing.T) {
	handler := DoubleSubmitCSRF(okHandler())

	t.Run("safe methods pass", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/data", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("missing cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/data", nil)
		req.Header.Set(CSRFHeaderName, "tok")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/data", nil)
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok"})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/data", nil)
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok-a"})
		req.Header.Set(CSRFHeaderName, "tok-b")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("match", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/data", nil)
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "tok"})
		req.Header.Set(CSRFHeaderName, "tok")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})
}

func TestIssueCSRFTokenRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	IssueCSRFToken(rec, httptest.NewRequest(http.MethodGet, "/csrf", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.CSRFToken == "" {
		t.Fatal("empty csrf token in body")
	}

	var cookieValue string
	for _, c := range rec.Result().Cookies() {
		if c.Name == CSRFCookieName {
			cookieValue = c.Value
		}
	}
	if cookieValue != body.CSRFToken {
		t.Fatalf("cookie %q does not match body token %q", cookieValue, body.CSRFToken)
	}

	// The minted pair must satisfy the check it exists for.
	handler := DoubleSubmitCSRF(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/data", strings.NewReader("{}"))
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: cookieValue})
	req.Header.Set(CSRFHeaderName, body.CSRFToken)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
}
