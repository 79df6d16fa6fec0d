package session

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a Store over an expiring in-memory cache. Entries carry a bounded
// TTL so abandoned sign-ins do not leave a verifier or exchange lock behind.
type Cache struct {
	c   *gocache.Cache
	ttl time.Duration
}

var _ = Store(&Cache{})

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		c:   gocache.New(ttl, 2*ttl),
		ttl: ttl,
	}
}

func (s *Cache) Get(key string) (string, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return "", false
	}

	value, ok := v.(string)

	return value, ok
}

func (s *Cache) Set(key, value string) {
	s.c.Set(key, value, s.ttl)
}

func (s *Cache) SetIfAbsent(key, value string) bool {
	return s.c.Add(key, value, s.ttl) == nil
}

func (s *Cache) Delete(keys ...string) {
	for _, key := range keys {
		s.c.Delete(key)
	}
}
