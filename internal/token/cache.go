package token

import "context"

// Cache is the durable store of the current token set. Load returns
// serviceerr.ErrNotFound for an absent set and must purge and report absent
// for an expired one.
type Cache interface {
	Load(ctx context.Context) (Set, error)
	Store(ctx context.Context, s Set) error
	Clear(ctx context.Context) error
}
