// Package business wires the configured components together and exposes one
// entry point per command.
package business

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/pkg/browser"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-gate/internal/account"
	"github.com/openkcm/auth-gate/internal/callback"
	"github.com/openkcm/auth-gate/internal/config"
	"github.com/openkcm/auth-gate/internal/flow"
	"github.com/openkcm/auth-gate/internal/session"
	"github.com/openkcm/auth-gate/internal/token"
	tokenfile "github.com/openkcm/auth-gate/internal/token/file"
	tokenvalkey "github.com/openkcm/auth-gate/internal/token/valkey"
)

// Login drives a full interactive sign-in: it opens the provider's hosted
// sign-in page in the browser, waits for the authorization callback on the
// configured redirect URI and resolves it into a terminal snapshot.
func Login(ctx context.Context, cfg *config.Config) (flow.Snapshot, error) {
	manager, closeFn, err := initManager(ctx, cfg, browserNavigator())
	if err != nil {
		return flow.Snapshot{}, fmt.Errorf("initialising the flow manager: %w", err)
	}

	defer closeFn()

	addr, path, err := listenTarget(cfg.Provider.RedirectURI)
	if err != nil {
		return flow.Snapshot{}, fmt.Errorf("deriving the callback listen address: %w", err)
	}

	listener, err := callback.NewListener(addr, path)
	if err != nil {
		return flow.Snapshot{}, fmt.Errorf("starting the callback listener: %w", err)
	}

	if err := manager.BeginSignIn(ctx, flow.SignInOptions{}); err != nil {
		return flow.Snapshot{}, fmt.Errorf("beginning the sign-in: %w", err)
	}

	slogctx.Info(ctx, "Waiting for the authorization callback", "redirect_uri", listener.RedirectURI())

	loc, err := listener.Wait(ctx)
	if err != nil {
		return flow.Snapshot{}, fmt.Errorf("waiting for the authorization callback: %w", err)
	}

	return manager.Initialize(ctx, loc), nil
}

// Status reports the current snapshot without any network sign-in. With retry
// it re-runs only the account status check against the cached tokens.
func Status(ctx context.Context, cfg *config.Config, retry bool) (flow.Snapshot, error) {
	manager, closeFn, err := initManager(ctx, cfg, noNavigator())
	if err != nil {
		return flow.Snapshot{}, fmt.Errorf("initialising the flow manager: %w", err)
	}

	defer closeFn()

	if retry {
		return manager.Retry(ctx), nil
	}

	loc, err := callback.NewStaticLocation(cfg.Provider.RedirectURI)
	if err != nil {
		return flow.Snapshot{}, fmt.Errorf("parsing the redirect uri: %w", err)
	}

	return manager.Initialize(ctx, loc), nil
}

// Logout clears the local session and opens the provider's logout page.
func Logout(ctx context.Context, cfg *config.Config) error {
	manager, closeFn, err := initManager(ctx, cfg, browserNavigator())
	if err != nil {
		return fmt.Errorf("initialising the flow manager: %w", err)
	}

	defer closeFn()

	return manager.SignOut(ctx)
}

func initManager(ctx context.Context, cfg *config.Config, nav flow.Navigator) (_ *flow.Manager, closeFn func(), _ error) {
	clientID, err := commoncfg.LoadValueFromSourceRef(cfg.Provider.ClientID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading the client id: %w", err)
	}

	cache, closeCache, err := initTokenCache(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialising the token cache: %w", err)
	}

	tokenEndpoint, err := config.TokenEndpoint(cfg.Provider)
	if err != nil {
		closeCache()

		return nil, nil, fmt.Errorf("building the token endpoint: %w", err)
	}

	store := session.NewCache(cfg.Flow.SessionTTL)
	exchanger := token.NewExchanger(http.DefaultClient, tokenEndpoint, string(clientID), cfg.Provider.RedirectURI, store)
	status := account.NewResolver(http.DefaultClient, cfg.Backend.StatusURL)

	manager, err := flow.NewManager(cfg, string(clientID), store, cache, exchanger, status, nav)
	if err != nil {
		closeCache()

		return nil, nil, fmt.Errorf("creating the flow manager: %w", err)
	}

	return manager, closeCache, nil
}

func initTokenCache(_ context.Context, cfg *config.Config) (token.Cache, func(), error) {
	switch cfg.TokenCache.Kind {
	case "", "file":
		path := cfg.TokenCache.File.Path
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, nil, fmt.Errorf("resolving the home directory: %w", err)
			}

			path = filepath.Join(home, ".auth-gate", "tokens.json")
		}

		return tokenfile.NewCache(path), func() {}, nil
	case "valkey":
		valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.TokenCache.ValKey.Host)
		if err != nil {
			return nil, nil, fmt.Errorf("loading valkey host: %w", err)
		}

		valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.TokenCache.ValKey.User)
		if err != nil {
			return nil, nil, fmt.Errorf("loading valkey username: %w", err)
		}

		valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.TokenCache.ValKey.Password)
		if err != nil {
			return nil, nil, fmt.Errorf("loading valkey password: %w", err)
		}

		valkeyClient, err := valkey.NewClient(valkey.ClientOption{
			InitAddress: []string{string(valkeyHost)},
			Username:    string(valkeyUsername),
			Password:    string(valkeyPassword),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating a new valkey client: %w", err)
		}

		return tokenvalkey.NewCache(valkeyClient, cfg.TokenCache.ValKey.Prefix), valkeyClient.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown token cache kind %q", cfg.TokenCache.Kind)
	}
}

func browserNavigator() flow.Navigator {
	return flow.NavigatorFunc(func(ctx context.Context, rawURL string) error {
		slogctx.Info(ctx, "Opening the browser", "url", rawURL)

		if err := browser.OpenURL(rawURL); err != nil {
			// Headless hosts get the URL to open by hand.
			slogctx.Warn(ctx, "Could not open the browser", "error", err)
			_, _ = fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n\n  %s\n\n", rawURL)
		}

		return nil
	})
}

// noNavigator rejects navigation. Status never redirects.
func noNavigator() flow.Navigator {
	return flow.NavigatorFunc(func(_ context.Context, rawURL string) error {
		return fmt.Errorf("navigation to %s is not available in this command", rawURL)
	})
}

// listenTarget derives the local listen address and callback path from the
// configured redirect URI.
func listenTarget(redirectURI string) (addr, path string, _ error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", "", fmt.Errorf("parsing redirect uri: %w", err)
	}

	if u.Host == "" {
		return "", "", fmt.Errorf("redirect uri %q has no host to listen on", redirectURI)
	}

	return u.Host, u.Path, nil
}
