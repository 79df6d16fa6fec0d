// Package flow composes the sign-in machinery into the state machine the
// presentation layer drives: sign-in, initialization, retry and sign-out.
package flow

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-gate/internal/account"
	"github.com/openkcm/auth-gate/internal/callback"
	"github.com/openkcm/auth-gate/internal/config"
	"github.com/openkcm/auth-gate/internal/pkce"
	"github.com/openkcm/auth-gate/internal/serviceerr"
	"github.com/openkcm/auth-gate/internal/session"
	"github.com/openkcm/auth-gate/internal/token"
)

// StatusChecker classifies the account behind an identity token.
type StatusChecker interface {
	Check(ctx context.Context, idToken string) (account.Status, error)
}

type Manager struct {
	provider config.Provider
	clientID string

	pkce        pkce.Source
	store       session.Store
	cache       token.Cache
	coordinator *Coordinator
	status      StatusChecker
	nav         Navigator

	meters meters
	tracer trace.Tracer
}

func NewManager(
	cfg *config.Config,
	clientID string,
	store session.Store,
	cache token.Cache,
	exchanger Exchanger,
	status StatusChecker,
	nav Navigator,
) (*Manager, error) {
	if err := config.Validate(cfg.Provider); err != nil {
		return nil, fmt.Errorf("validating provider config: %w", err)
	}

	m, err := newMeters(context.Background())
	if err != nil {
		return nil, err
	}

	return &Manager{
		provider:    cfg.Provider,
		clientID:    clientID,
		store:       store,
		cache:       cache,
		coordinator: NewCoordinator(cache, store, exchanger, cfg.Flow.PollInterval, cfg.Flow.PollBudget),
		status:      status,
		nav:         nav,
		meters:      m,
		tracer:      newTracer(),
	}, nil
}

type SignInOptions struct {
	// Lang overrides the provider's UI language for this sign-in.
	Lang string
}

// BeginSignIn creates a fresh PKCE session, overwriting any prior one, and
// requests external navigation to the provider's authorization endpoint. In
// a navigable environment control does not come back on success.
func (m *Manager) BeginSignIn(ctx context.Context, opts SignInOptions) error {
	ctx, span := m.tracer.Start(ctx, "BeginSignIn")
	defer span.End()

	verifier := m.pkce.Verifier()
	state := m.pkce.State()
	session.SaveLogin(m.store, session.Login{Verifier: verifier, State: state})

	authorizeURL, err := m.authorizeURL(verifier, state, opts)
	if err != nil {
		return fmt.Errorf("building the authorization URL: %w", err)
	}

	m.meters.signIns.Add(ctx, 1)
	slogctx.Info(ctx, "Redirecting to the authorization endpoint")

	return m.nav.Redirect(ctx, authorizeURL)
}

func (m *Manager) authorizeURL(verifier, state string, opts SignInOptions) (string, error) {
	endpoint, err := config.AuthorizeEndpoint(m.provider)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing authorization endpoint url: %w", err)
	}

	scope := "openid email profile"
	if m.provider.AdminScope != "" {
		scope += " " + m.provider.AdminScope
	}

	q := u.Query()
	q.Set("client_id", m.clientID)
	q.Set("response_type", "code")
	q.Set("scope", scope)
	q.Set("redirect_uri", m.provider.RedirectURI)
	q.Set("state", state)
	q.Set("code_challenge", pkce.Challenge(verifier))
	q.Set("code_challenge_method", pkce.MethodS256)

	lang := opts.Lang
	if lang == "" {
		lang = m.provider.Lang
	}
	if lang != "" {
		q.Set("lang", lang)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Initialize is the entry point the front end runs on every load. It may be
// invoked more than once concurrently for the same logical session; every
// invocation converges on the same terminal snapshot. Failures never
// propagate: they are logged and published as the error state.
func (m *Manager) Initialize(ctx context.Context, loc callback.Location) Snapshot {
	ctx = slogctx.With(ctx, "flow_id", uuid.NewString())
	ctx, span := m.tracer.Start(ctx, "Initialize")
	defer span.End()

	snapshot := m.initialize(ctx, loc)

	span.SetAttributes(attribute.String("auth.state", string(snapshot.State)))
	m.meters.recordInit(ctx, snapshot.State)

	return snapshot
}

func (m *Manager) initialize(ctx context.Context, loc callback.Location) Snapshot {
	pending, ok := callback.Resolve(loc, m.store)
	if !ok {
		set, err := m.cache.Load(ctx)
		if err != nil {
			slogctx.Debug(ctx, "No pending callback and no cached token set")

			return Snapshot{State: StateSignedOut}
		}

		return m.statusSnapshot(ctx, set)
	}

	login, ok := session.LoadLogin(m.store)
	if !ok {
		// A concurrent invocation may have completed the exchange
		// already, consuming the single-use login session. A valid
		// cached set is that exchange's signature: converge on it
		// instead of reading the missing state as a forgery.
		if set, err := m.cache.Load(ctx); err == nil {
			callback.Clear(m.store)

			return m.statusSnapshot(ctx, set)
		}
	}

	if !callback.ValidateState(pending.State, login.State) {
		slogctx.Error(ctx, "Rejecting the callback", "error", serviceerr.ErrStateMismatch)
		callback.Clear(m.store)
		session.ClearLogin(m.store)

		return Snapshot{State: StateError}
	}

	set, err := m.coordinator.Resolve(ctx, pending)
	if err != nil {
		slogctx.Error(ctx, "Resolving the pending callback failed", "error", err)
		callback.Clear(m.store)

		return Snapshot{State: StateError}
	}

	return m.statusSnapshot(ctx, set)
}

// Retry re-runs only the status check against the cached token set. It never
// re-exchanges a code.
func (m *Manager) Retry(ctx context.Context) Snapshot {
	ctx, span := m.tracer.Start(ctx, "Retry")
	defer span.End()

	set, err := m.cache.Load(ctx)
	if err != nil {
		return Snapshot{State: StateSignedOut}
	}

	return m.statusSnapshot(ctx, set)
}

// SignOut clears every trace of the session and requests navigation to the
// provider's logout endpoint.
func (m *Manager) SignOut(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "SignOut")
	defer span.End()

	if err := m.cache.Clear(ctx); err != nil {
		slogctx.Warn(ctx, "Failed to clear the token cache on sign-out", "error", err)
	}
	session.ClearLogin(m.store)
	callback.Clear(m.store)

	endpoint, err := config.LogoutEndpoint(m.provider)
	if err != nil {
		return fmt.Errorf("building the logout URL: %w", err)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parsing logout endpoint url: %w", err)
	}

	q := u.Query()
	q.Set("client_id", m.clientID)
	q.Set("logout_uri", m.provider.LogoutURI)
	u.RawQuery = q.Encode()

	slogctx.Info(ctx, "Redirecting to the logout endpoint")

	return m.nav.Redirect(ctx, u.String())
}

func (m *Manager) statusSnapshot(ctx context.Context, set token.Set) Snapshot {
	user, err := token.UserFromIDToken(set.IDToken)
	if err != nil {
		slogctx.Error(ctx, "Failed to decode the identity token", "error", err)

		return Snapshot{State: StateError}
	}

	ctx = slogctx.With(ctx, "user_id", user.UserID)

	status, err := m.status.Check(ctx, set.IDToken)
	if err != nil {
		slogctx.Error(ctx, "Account status check failed", "error", err)
	}

	return Snapshot{State: State(status), User: &user}
}
