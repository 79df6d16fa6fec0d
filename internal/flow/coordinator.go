package flow

import (
	"context"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-gate/internal/serviceerr"
	"github.com/openkcm/auth-gate/internal/session"
	"github.com/openkcm/auth-gate/internal/token"
)

// Exchanger trades an authorization code for a token set.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (token.Set, error)
}

// Coordinator guarantees at most one outstanding token exchange per pending
// callback, even when initialization runs concurrently more than once for the
// same logical session. The first invocation to claim the exchange lock
// performs the call; the others poll the token cache for its result.
type Coordinator struct {
	cache     token.Cache
	store     session.Store
	exchanger Exchanger

	pollInterval time.Duration
	pollBudget   int
}

func NewCoordinator(cache token.Cache, store session.Store, exchanger Exchanger, pollInterval time.Duration, pollBudget int) *Coordinator {
	return &Coordinator{
		cache:        cache,
		store:        store,
		exchanger:    exchanger,
		pollInterval: pollInterval,
		pollBudget:   pollBudget,
	}
}

// Resolve turns a pending callback into a token set. On every terminal path,
// the pending callback and the exchange lock are cleared together.
func (c *Coordinator) Resolve(ctx context.Context, pending session.Pending) (token.Set, error) {
	// Another invocation may have completed the exchange already.
	if set, err := c.cache.Load(ctx); err == nil {
		session.ClearPending(c.store)

		return set, nil
	}

	if session.ClaimExchange(c.store) {
		return c.exchange(ctx, pending)
	}

	return c.await(ctx)
}

// exchange is the lock owner's path. Ownership is never transferred: the
// pending callback and the lock are cleared here, success or failure.
func (c *Coordinator) exchange(ctx context.Context, pending session.Pending) (token.Set, error) {
	defer session.ClearPending(c.store)

	set, err := c.exchanger.Exchange(ctx, pending.Code)
	if err != nil {
		return token.Set{}, err
	}

	if err := c.cache.Store(ctx, set); err != nil {
		return token.Set{}, fmt.Errorf("caching the token set: %w", err)
	}

	return set, nil
}

// await polls the cache while a concurrent invocation owns the exchange. The
// loop is the only bounded-wait construct in the flow and terminates after a
// fixed budget.
func (c *Coordinator) await(ctx context.Context) (token.Set, error) {
	slogctx.Debug(ctx, "Exchange already in flight, awaiting its result")

	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	for range c.pollBudget {
		select {
		case <-ctx.Done():
			return token.Set{}, fmt.Errorf("%w: %w", serviceerr.ErrExchangeTimeout, ctx.Err())
		case <-timer.C:
		}
		timer.Reset(c.pollInterval)

		if set, err := c.cache.Load(ctx); err == nil {
			session.ClearPending(c.store)

			return set, nil
		}

		// The lock is gone. The owner may have stored its result after
		// the cache read above and released before this check, so the
		// cache gets one more look before the owner is declared failed.
		if !session.ExchangeInFlight(c.store) {
			if set, err := c.cache.Load(ctx); err == nil {
				session.ClearPending(c.store)

				return set, nil
			}

			return token.Set{}, fmt.Errorf("%w: concurrent exchange did not produce a token set", serviceerr.ErrExchangeFailed)
		}
	}

	return token.Set{}, serviceerr.ErrExchangeTimeout
}
