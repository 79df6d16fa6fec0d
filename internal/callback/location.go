package callback

import (
	"net/url"
	"sync"
)

// Location is the injected "current URL" capability. Replace rewrites the URL
// in place; it must not add a navigation or history entry.
type Location interface {
	Current() *url.URL
	Replace(u *url.URL)
}

// StaticLocation holds a URL in memory. It is the Location used by the CLI
// (seeded from the caught redirect) and by tests.
type StaticLocation struct {
	mu sync.Mutex
	u  *url.URL
}

var _ = Location(&StaticLocation{})

func NewStaticLocation(rawURL string) (*StaticLocation, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	return &StaticLocation{u: u}, nil
}

func (l *StaticLocation) Current() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()

	clone := *l.u

	return &clone
}

func (l *StaticLocation) Replace(u *url.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()

	clone := *u
	l.u = &clone
}
