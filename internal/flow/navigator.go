package flow

import "context"

// Navigator performs the external-redirect effect. Sign-in and sign-out hand
// the provider URL to it and treat the navigation as fire-and-forget, which
// keeps the decision logic runnable without a navigable environment.
type Navigator interface {
	Redirect(ctx context.Context, url string) error
}

type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Redirect(ctx context.Context, url string) error {
	return f(ctx, url)
}
