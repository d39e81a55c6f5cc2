package tokenstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Fixed keys under which the token pair is persisted
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// Store is durable string storage for the token keys
type Store interface {
	// Get returns the stored value and whether it exists
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value, replacing any previous one
	Set(ctx context.Context, key, value string) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close releases backend resources
	Close() error
}

// Watcher is implemented by stores that can report changes made by other processes
type Watcher interface {
	// Watch calls onChange after the stored values may have changed, until ctx is done
	Watch(ctx context.Context, onChange func()) error
}

// Tokens is the persisted credential pair. Empty strings mean absent.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Load reads both token keys
func Load(ctx context.Context, s Store) (Tokens, error) {
	var tokens Tokens
	var err error
	if tokens.AccessToken, _, err = s.Get(ctx, AccessTokenKey); err != nil {
		return Tokens{}, fmt.Errorf("failed to read access token: %w", err)
	}
	if tokens.RefreshToken, _, err = s.Get(ctx, RefreshTokenKey); err != nil {
		return Tokens{}, fmt.Errorf("failed to read refresh token: %w", err)
	}
	return tokens, nil
}

// Save writes both token keys: non-empty values are set, empty ones deleted
func Save(ctx context.Context, s Store, tokens Tokens) error {
	if err := put(ctx, s, AccessTokenKey, tokens.AccessToken); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}
	if err := put(ctx, s, RefreshTokenKey, tokens.RefreshToken); err != nil {
		return fmt.Errorf("failed to persist refresh token: %w", err)
	}
	return nil
}

func put(ctx context.Context, s Store, key, value string) error {
	if value == "" {
		return s.Delete(ctx, key)
	}
	return s.Set(ctx, key, value)
}

// Config selects and configures a backend
type Config struct {
	Type string // "file", "redis", "sqlite", "postgres", "memory"

	// File config
	FilePath string

	// Redis config
	RedisURL      string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// SQL config (sqlite and postgres)
	SQLDSN     string
	SQLTable   string
	SQLTimeout time.Duration
}

// DefaultConfig returns the file backend under the user's config directory
func DefaultConfig() Config {
	return Config{
		Type:        "file",
		FilePath:    DefaultFilePath(),
		RedisDB:     0,
		RedisPrefix: "portal:",
		SQLTable:    "portal_tokens",
		SQLTimeout:  5 * time.Second,
	}
}

// DefaultFilePath is $HOME/.config/portal/tokens.json
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "portal", "tokens.json")
	}
	return filepath.Join(home, ".config", "portal", "tokens.json")
}

// Open creates the backend named by cfg.Type
func Open(cfg Config) (Store, error) {
	switch cfg.Type {
	case "file", "":
		return NewFileStore(cfg.FilePath)
	case "redis":
		return NewRedisStore(cfg)
	case "sqlite":
		return OpenSQLStore(DialectSQLite, cfg.SQLDSN, cfg.SQLTable, cfg.SQLTimeout)
	case "postgres":
		return OpenSQLStore(DialectPostgres, cfg.SQLDSN, cfg.SQLTable, cfg.SQLTimeout)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store type: %s", cfg.Type)
	}
}
