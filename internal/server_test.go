package internal

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"chatter/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.NewStore("sqlite://file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	server := NewServer(store, ServerOptions{
		JWTSecret: []byte("test-secret"),
		UploadDir: t.TempDir(),
	})
	// generous limiter so rapid test requests are never throttled.
	server.authLimiter = NewRateLimiter(1000, 1000)
	return server
}

func createTestUser(t *testing.T, s *Server, username, password string) *storage.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	id, err := s.store.CreateUser(context.Background(), username, hash)
	if err != nil {
		t.Fatalf("CreateUser %s: %v", username, err)
	}
	return &storage.User{ID: id, Username: username, PasswordHash: hash}
}

func testToken(t *testing.T, s *Server, user *storage.User) string {
	t.Helper()
	token, _, err := s.issueToken(user)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	return token
}
