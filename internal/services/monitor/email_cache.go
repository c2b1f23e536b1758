package monitor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EmailCache persists the last alert address so alerts can be e-mailed
// before the backend has delivered the alert settings.
type EmailCache struct {
	path string
}

func NewEmailCache(path string) *EmailCache {
	return &EmailCache{path: path}
}

// Load returns the cached address, or "" when there is none.
func (c *EmailCache) Load() (string, error) {
	if c == nil || c.path == "" {
		return "", nil
	}
	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read email cache: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Store saves a non-empty address; empty ones are ignored.
func (c *EmailCache) Store(email string) error {
	email = strings.TrimSpace(email)
	if c == nil || c.path == "" || email == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create email cache dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(email+"\n"), 0o600); err != nil {
		return fmt.Errorf("write email cache: %w", err)
	}
	return os.Rename(tmp, c.path)
}
