// Package tokenvalkey keeps the token set in a ValKey instance, for front
// ends that share the cache across hosts. The entry's TTL tracks the token
// expiry, so an expired set disappears from the store on its own.
package tokenvalkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/auth-gate/internal/serviceerr"
	"github.com/openkcm/auth-gate/internal/token"
)

const objectTypeTokenSet = "tokenSet"

var (
	ErrGetTokenSet   = errors.New("getting token set from store")
	ErrStoreTokenSet = errors.New("setting token set into storage")
	ErrClearTokenSet = errors.New("deleting token set from storage")
)

type Cache struct {
	valkey valkey.Client
	prefix string

	now func() time.Time
}

var _ = token.Cache(&Cache{})

func NewCache(valkeyClient valkey.Client, prefix string) *Cache {
	prefix = strings.TrimSuffix(prefix, ":")

	return &Cache{
		valkey: valkeyClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (c *Cache) Load(ctx context.Context) (token.Set, error) {
	key := c.key()

	data, err := c.valkey.Do(ctx, c.valkey.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return token.Set{}, serviceerr.ErrNotFound
		}

		return token.Set{}, errors.Join(ErrGetTokenSet, err)
	}

	var set token.Set
	if err := json.Unmarshal(data, &set); err != nil {
		return token.Set{}, errors.Join(ErrGetTokenSet, err)
	}

	if !set.Valid(c.now()) {
		_ = c.Clear(ctx)

		return token.Set{}, serviceerr.ErrNotFound
	}

	return set, nil
}

func (c *Cache) Store(ctx context.Context, set token.Set) error {
	data, err := json.Marshal(set)
	if err != nil {
		return errors.Join(ErrStoreTokenSet, err)
	}

	ttl := time.Until(set.ExpiresAt)
	if ttl <= 0 {
		return errors.Join(ErrStoreTokenSet, errors.New("token set already expired"))
	}

	cmd := c.valkey.B().Set().Key(c.key()).Value(valkey.BinaryString(data)).Px(ttl).Build()
	if err := c.valkey.Do(ctx, cmd).Error(); err != nil {
		return errors.Join(ErrStoreTokenSet, err)
	}

	return nil
}

func (c *Cache) Clear(ctx context.Context) error {
	if err := c.valkey.Do(ctx, c.valkey.B().Del().Key(c.key()).Build()).Error(); err != nil {
		return errors.Join(ErrClearTokenSet, err)
	}

	return nil
}

func (c *Cache) key() string {
	return fmt.Sprintf("%s:%s", c.prefix, objectTypeTokenSet)
}
