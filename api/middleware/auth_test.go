package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/koseken/game-trading/pkg/auth"
	"github.com/koseken/game-trading/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.Issue(cfg, time.Now(), userID, "u@example.com")
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token := mintTestToken(t, cfg, userID)

	var captured uuid.UUID
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = ActorID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured != userID {
		t.Fatalf("expected user %s got %s", userID, captured)
	}
}

func TestAuthQueryTokenOnlyForWebsocketUpgrade(t *testing.T) {
	cfg := testJWTConfig()
	token := mintTestToken(t, cfg, uuid.New())
	handler := Auth(cfg, nil)(okHandler())

	plain := httptest.NewRequest(http.MethodGet, "/stream?access_token="+token, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, plain)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for plain request with query token, got %d", resp.Code)
	}

	upgrade := httptest.NewRequest(http.MethodGet, "/stream?access_token="+token, nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, upgrade)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for upgrade with query token, got %d", resp.Code)
	}
}

type stubAdminChecker struct {
	admin bool
	err   error
}

func (s stubAdminChecker) IsAdmin(context.Context, uuid.UUID) (bool, error) {
	return s.admin, s.err
}

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		name    string
		checker stubAdminChecker
		userID  string
		want    int
	}{
		{"admin", stubAdminChecker{admin: true}, uuid.NewString(), http.StatusOK},
		{"not admin", stubAdminChecker{}, uuid.NewString(), http.StatusForbidden},
		{"anonymous", stubAdminChecker{admin: true}, "", http.StatusUnauthorized},
		{"lookup failure", stubAdminChecker{err: errors.New("db down")}, uuid.NewString(), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireAdmin(tc.checker, nil)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/stats", nil)
			if tc.userID != "" {
				req = req.WithContext(WithUserID(req.Context(), tc.userID))
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.Code)
			}
		})
	}
}
