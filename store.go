package threads

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// tokenDir returns the directory for persisting tokens.
func tokenDir(override string) string {
	if override != "" {
		return override
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".go-threads", "tokens")
}

// tokenPath returns the file path for a named token.
func tokenPath(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

// savedToken is the on-disk form of a Token.
type savedToken struct {
	Token
	SavedAt time.Time `json:"saved_at"`
}

// SaveToken persists t as <dir>/<name>.json with owner-only permissions.
// An empty dir means ~/.go-threads/tokens.
func SaveToken(dir, name string, t *Token) error {
	d := tokenDir(dir)
	if err := os.MkdirAll(d, 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.MarshalIndent(savedToken{Token: *t, SavedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	path := tokenPath(d, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write token %s: %w", path, err)
	}
	slog.Debug("token saved", slog.String("name", name), slog.String("kind", string(t.Kind)))
	return nil
}

// LoadToken reads a token saved by SaveToken. A missing file returns nil, nil.
func LoadToken(dir, name string) (*Token, error) {
	data, err := os.ReadFile(tokenPath(tokenDir(dir), name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var s savedToken
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", name, err)
	}
	return &s.Token, nil
}
