package tokenmock

import (
	"context"
	"sync"
	"time"

	"github.com/openkcm/auth-gate/internal/serviceerr"
	"github.com/openkcm/auth-gate/internal/token"
)

type CacheOption func(*Cache)

// Cache is an in-memory token cache for tests. It is safe for concurrent use,
// which the coordinator tests rely on.
type Cache struct {
	mu  sync.Mutex
	set *token.Set

	loadErr, storeErr, clearErr error

	now func() time.Time
}

func WithSet(s token.Set) CacheOption {
	return func(c *Cache) { c.set = &s }
}
func WithLoadError(err error) CacheOption {
	return func(c *Cache) { c.loadErr = err }
}
func WithStoreError(err error) CacheOption {
	return func(c *Cache) { c.storeErr = err }
}
func WithClearError(err error) CacheOption {
	return func(c *Cache) { c.clearErr = err }
}
func WithNow(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

var _ = token.Cache(&Cache{})

func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

func (c *Cache) Load(_ context.Context) (token.Set, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loadErr != nil {
		return token.Set{}, c.loadErr
	}
	if c.set == nil {
		return token.Set{}, serviceerr.ErrNotFound
	}
	if !c.set.Valid(c.now()) {
		c.set = nil

		return token.Set{}, serviceerr.ErrNotFound
	}

	return *c.set, nil
}

func (c *Cache) Store(_ context.Context, set token.Set) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storeErr != nil {
		return c.storeErr
	}
	c.set = &set

	return nil
}

func (c *Cache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clearErr != nil {
		return c.clearErr
	}
	c.set = nil

	return nil
}

// TSet exposes the stored set to tests, bypassing validity checks.
func (c *Cache) TSet() *token.Set {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.set
}
