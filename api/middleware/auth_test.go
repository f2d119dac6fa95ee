package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/config"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "gigledger", ExpirationMinutes: 10}
}

func mintToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthSeedsActor(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	var seen pkgAuth.Actor
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			t.Fatal("expected actor in context")
		}
		seen = actor
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts/x", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, userID, enums.ActorRoleUser))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if seen.UserID != userID || seen.Role != enums.ActorRoleUser {
		t.Fatalf("unexpected actor %+v", seen)
	}
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	cfg := testJWTConfig()
	handler := Auth(cfg, nil)(okHandler())

	cases := map[string]string{
		"missing": "",
		"empty":   "Bearer ",
		"garbage": "Bearer not-a-jwt",
		"foreign": "Bearer " + mintToken(t, config.JWTConfig{Secret: "other", Issuer: "gigledger", ExpirationMinutes: 10}, uuid.New(), enums.ActorRoleUser),
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", name, rec.Code)
		}
	}
}

func TestAuthRejectsSystemRole(t *testing.T) {
	cfg := testJWTConfig()
	handler := Auth(cfg, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contracts/x", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, cfg, uuid.New(), enums.ActorRoleSystem))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(pkgAuth.Actor{UserID: uuid.New(), Role: enums.ActorRoleUser}))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(pkgAuth.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor got %d", rec.Code)
	}
}
