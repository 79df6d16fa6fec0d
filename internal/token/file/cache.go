// Package tokenfile persists the token set as a JSON file, the durable cache
// used by the CLI between invocations.
package tokenfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openkcm/auth-gate/internal/serviceerr"
	"github.com/openkcm/auth-gate/internal/token"
)

type Cache struct {
	path string
	mu   sync.Mutex

	now func() time.Time
}

var _ = token.Cache(&Cache{})

func NewCache(path string) *Cache {
	return &Cache{
		path: path,
		now:  time.Now,
	}
}

func (c *Cache) Load(_ context.Context) (token.Set, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return token.Set{}, serviceerr.ErrNotFound
	}
	if err != nil {
		return token.Set{}, fmt.Errorf("reading token cache: %w", err)
	}

	var set token.Set
	if err := json.Unmarshal(data, &set); err != nil {
		// An unreadable cache is treated as absent and purged.
		_ = os.Remove(c.path)

		return token.Set{}, serviceerr.ErrNotFound
	}

	if !set.Valid(c.now()) {
		_ = os.Remove(c.path)

		return token.Set{}, serviceerr.ErrNotFound
	}

	return set, nil
}

func (c *Cache) Store(_ context.Context, set token.Set) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encoding token set: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating token cache directory: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}

	return nil
}

func (c *Cache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token cache: %w", err)
	}

	return nil
}
