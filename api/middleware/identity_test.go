package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/identity"
	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "marketplace", ExpirationMinutes: 60}

func captureOwner(t *testing.T, req *http.Request) (identity.Owner, int) {
	t.Helper()
	var captured identity.Owner
	handler := Identity(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return captured, resp.Code
}

func mintTestToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{UserID: userID})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestIdentityAnonymousRequestPassesThrough(t *testing.T) {
	owner, code := captureOwner(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if !owner.IsZero() {
		t.Fatalf("expected anonymous owner, got %v", owner)
	}
}

func TestIdentitySessionFromHeaderAndCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, " sess-1 ")
	owner, _ := captureOwner(t, req)
	if owner.Kind != enums.CartOwnerSession || owner.ID != "sess-1" {
		t.Fatalf("unexpected owner %+v", owner)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sess-2"})
	owner, _ = captureOwner(t, req)
	if owner.Kind != enums.CartOwnerSession || owner.ID != "sess-2" {
		t.Fatalf("unexpected owner %+v", owner)
	}
}

func TestIdentityRejectsMalformedSessionID(t *testing.T) {
	cases := map[string]string{
		"too long":      strings.Repeat("a", MaxSessionIDLength+1),
		"key separator": "sess 1",
		"wildcard":      "sess*",
		"path":          "../cart",
	}
	for name, id := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(SessionHeader, id)
			resp := httptest.NewRecorder()
			called := false
			Identity(testJWT, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			})).ServeHTTP(resp, req)
			if called || resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 without reaching handler, got %d called=%v", resp.Code, called)
			}
			if !strings.Contains(resp.Body.String(), "INVALID_REQUEST") {
				t.Fatalf("expected INVALID_REQUEST body, got %s", resp.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: strings.Repeat("c", MaxSessionIDLength+1)})
	if _, code := captureOwner(t, req); code != http.StatusBadRequest {
		t.Fatalf("oversized cookie: expected 400 got %d", code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, strings.Repeat("A", MaxSessionIDLength))
	owner, code := captureOwner(t, req)
	if code != http.StatusOK || len(owner.ID) != MaxSessionIDLength {
		t.Fatalf("expected max length id to pass, got %d %+v", code, owner)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, uuid.New()))
	req.Header.Set(SessionHeader, strings.Repeat("a", MaxSessionIDLength+1))
	if owner, code := captureOwner(t, req); code != http.StatusOK || !owner.IsUser() {
		t.Fatalf("authenticated callers ignore the session id, got %d %+v", code, owner)
	}
}

func TestIdentityBearerTokenWinsOverSession(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, userID))
	req.Header.Set(SessionHeader, "sess-1")

	owner, code := captureOwner(t, req)
	if code != http.StatusOK {
		t.Fatalf("expected 200 got %d", code)
	}
	if !owner.IsUser() || owner.ID != userID.String() {
		t.Fatalf("expected user owner, got %+v", owner)
	}
}

func TestIdentityRejectsInvalidToken(t *testing.T) {
	for _, header := range []string{"Bearer invalid", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		req.Header.Set(SessionHeader, "sess-1")
		if _, code := captureOwner(t, req); code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401 got %d", header, code)
		}
	}
}

func TestIdentityReportsExpiredToken(t *testing.T) {
	token, err := auth.MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), auth.AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	Identity(testJWT, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized || !strings.Contains(resp.Body.String(), "token expired") {
		t.Fatalf("expected 401 token expired, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestRequireUser(t *testing.T) {
	handler := Identity(testJWT, nil)(RequireUser(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(SessionHeader, "sess-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("session callers must be rejected, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, uuid.New()))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
}

func TestRecovererAnswersInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "INTERNAL_ERROR") || strings.Contains(resp.Body.String(), "kaboom") {
		t.Fatalf("expected opaque internal error, got %s", resp.Body.String())
	}
}

func TestRecovererKeepsStartedResponse(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("partial"))
		panic("late failure")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusAccepted || resp.Body.String() != "partial" {
		t.Fatalf("started response must be left alone, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestRecovererReraisesAbortHandler(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", v)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRequestIDEchoesHeader(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(requestIDHeader)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(requestIDHeader); got != "req-1" || seen != "req-1" {
		t.Fatalf("expected echoed request id, got %q (handler saw %q)", got, seen)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if _, err := uuid.Parse(resp.Header().Get(requestIDHeader)); err != nil {
		t.Fatalf("expected generated uuid request id: %v", err)
	}
}

func TestRequestIDReplacesUntrustedHeader(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	for _, raw := range []string{strings.Repeat("r", maxRequestIDLength+1), "req id", "req\x00"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, raw)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		got := resp.Header().Get(requestIDHeader)
		if got == raw {
			t.Fatalf("%q must not be echoed", raw)
		}
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("expected replacement uuid, got %q", got)
		}
	}
}
