package internal

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"chatter/internal/storage"
)

func TestTokenRoundTrip(t *testing.T) {
	server := newTestServer(t)
	user := createTestUser(t, server, "alice", "hunter22")
	token := testToken(t, server, user)

	req := httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authCtx, err := server.authenticateRequest(req)
	if err != nil {
		t.Fatalf("authenticateRequest: %v", err)
	}
	if authCtx.UserID != user.ID || authCtx.Username != "alice" {
		t.Fatalf("authContext = %+v; want alice's identity", authCtx)
	}
}

func TestTokenViaQueryParameter(t *testing.T) {
	server := newTestServer(t)
	user := createTestUser(t, server, "alice", "hunter22")
	token := testToken(t, server, user)

	req := httptest.NewRequest("GET", "/ws?token="+token, nil)
	authCtx, err := server.authenticateRequest(req)
	if err != nil {
		t.Fatalf("authenticateRequest via query: %v", err)
	}
	if authCtx.UserID != user.ID {
		t.Fatalf("UserID = %d; want %d", authCtx.UserID, user.ID)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	server := newTestServer(t)
	user := createTestUser(t, server, "alice", "hunter22")
	server.tokenTTL = -time.Minute
	token := testToken(t, server, user)

	req := httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if _, err := server.authenticateRequest(req); !errors.Is(err, errUnauthorized) {
		t.Fatalf("expired token: got %v; want errUnauthorized", err)
	}
}

func TestForeignSignatureRejected(t *testing.T) {
	server := newTestServer(t)
	user := createTestUser(t, server, "alice", "hunter22")

	other := newTestServer(t)
	other.jwtSecret = []byte("some-other-secret")
	forged := testToken(t, other, user)

	req := httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	if _, err := server.authenticateRequest(req); !errors.Is(err, errUnauthorized) {
		t.Fatalf("forged token: got %v; want errUnauthorized", err)
	}
}

func TestMissingAndGarbageTokensRejected(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest("GET", "/users", nil)
	if _, err := server.authenticateRequest(req); !errors.Is(err, errUnauthorized) {
		t.Fatalf("missing token: got %v; want errUnauthorized", err)
	}

	req = httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	if _, err := server.authenticateRequest(req); !errors.Is(err, errUnauthorized) {
		t.Fatalf("garbage token: got %v; want errUnauthorized", err)
	}
}

func TestTokenForDeletedUserRejected(t *testing.T) {
	server := newTestServer(t)
	token := testToken(t, server, &storage.User{ID: 12345, Username: "ghost"})

	req := httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if _, err := server.authenticateRequest(req); !errors.Is(err, errUnauthorized) {
		t.Fatalf("token for unknown user: got %v; want errUnauthorized", err)
	}
}
