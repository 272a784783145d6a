package app

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// ServerConfig defines how the HTTP/WebSocket backend should run.
type ServerConfig struct {
	Addr         string
	DBPath       string
	UploadDir    string
	MaxImageSize int64
	JWTSecret    string
	TokenTTL     time.Duration
}

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	ServerURL string
	Username  string
}

// DefaultDBPath returns a per-user data path for the bundled SQLite file.
func DefaultDBPath() string {
	if env := os.Getenv("CHATTER_DB_PATH"); env != "" {
		return env
	}
	if env := os.Getenv("CHATTER_DATA_DIR"); env != "" {
		return filepath.Join(env, "chatter.db")
	}
	return filepath.Join(defaultDataDir(), "chatter.db")
}

// DefaultUploadDir returns the directory message images are stored in.
func DefaultUploadDir() string {
	if env := os.Getenv("CHATTER_UPLOAD_DIR"); env != "" {
		return env
	}
	if env := os.Getenv("CHATTER_DATA_DIR"); env != "" {
		return filepath.Join(env, "uploads")
	}
	return filepath.Join(defaultDataDir(), "uploads")
}

// DefaultSessionPath returns where the client caches its login token.
func DefaultSessionPath() string {
	if env := os.Getenv("CHATTER_SESSION_PATH"); env != "" {
		return env
	}
	return filepath.Join(defaultDataDir(), "session.json")
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "chatter")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Chatter")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Chatter")
		}
		return filepath.Join(home, ".local", "share", "chatter")
	}
	return filepath.Join(".", ".chatter")
}
