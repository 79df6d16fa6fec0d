package flow_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/auth-gate/internal/account"
	"github.com/openkcm/auth-gate/internal/config"
	"github.com/openkcm/auth-gate/internal/flow"
	"github.com/openkcm/auth-gate/internal/pkce"
	"github.com/openkcm/auth-gate/internal/session"
	"github.com/openkcm/auth-gate/internal/token"
	tokenmock "github.com/openkcm/auth-gate/internal/token/mock"
)

// startTokenServer answers code exchanges with a fresh token set and counts
// the exchange attempts it sees.
func startTokenServer(t *testing.T, idToken string, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.NotEmpty(t, r.PostForm.Get("code_verifier"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-token",
			"id_token":      idToken,
			"refresh_token": "refresh-token",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newTestManager(
	t *testing.T,
	cfg *config.Config,
	store session.Store,
	cache token.Cache,
	tokenEndpoint, statusEndpoint string,
	nav flow.Navigator,
) *flow.Manager {
	t.Helper()

	exchanger := token.NewExchanger(http.DefaultClient, tokenEndpoint, testClientID, cfg.Provider.RedirectURI, store)
	checker := account.NewResolver(http.DefaultClient, statusEndpoint)

	manager, err := flow.NewManager(cfg, testClientID, store, cache, exchanger, checker, nav)
	require.NoError(t, err)

	return manager
}

func TestManagerBeginSignIn(t *testing.T) {
	cfg := testConfig()
	store := session.NewCache(cfg.Flow.SessionTTL)
	nav := &recordingNavigator{}

	manager := newTestManager(t, cfg, store, tokenmock.NewCache(), "http://unused", "http://unused", nav)

	err := manager.BeginSignIn(context.Background(), flow.SignInOptions{Lang: "de"})
	require.NoError(t, err)
	require.EqualValues(t, 1, nav.calls.Load())

	u, err := url.Parse(nav.urls[0])
	require.NoError(t, err)

	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "auth.example.com", u.Host)
	assert.Equal(t, "/oauth2/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile aws.cognito.signin.user.admin", q.Get("scope"))
	assert.Equal(t, cfg.Provider.RedirectURI, q.Get("redirect_uri"))
	assert.Equal(t, pkce.MethodS256, q.Get("code_challenge_method"))
	assert.Equal(t, "de", q.Get("lang"))

	login, ok := session.LoadLogin(store)
	require.True(t, ok, "the login session must be stored before redirecting")
	assert.Equal(t, login.State, q.Get("state"))
	assert.Equal(t, pkce.Challenge(login.Verifier), q.Get("code_challenge"))
}

func TestManagerInitializeExchangesCallback(t *testing.T) {
	idToken := mintIDToken(t, "user-42", map[string]any{
		"cognito:username": "jdoe",
		"email":            "jdoe@example.com",
	})

	var exchanges atomic.Int64

	tokenSrv := startTokenServer(t, idToken, &exchanges)
	statusSrv := startStatusServer(t, http.StatusOK, `{}`)

	cfg := testConfig()
	store := session.NewCache(cfg.Flow.SessionTTL)
	cache := tokenmock.NewCache()
	manager := newTestManager(t, cfg, store, cache, tokenSrv.URL, statusSrv.URL, &recordingNavigator{})

	session.SaveLogin(store, session.Login{Verifier: "the-verifier", State: "xyz"})
	loc := mustLocation(t, "http://localhost:3000/?code=abc&state=xyz&foo=bar")

	snapshot := manager.Initialize(context.Background(), loc)

	want := flow.Snapshot{
		State: flow.StateApproved,
		User: &token.UserInfo{
			Username: "jdoe",
			UserID:   "user-42",
			Email:    "jdoe@example.com",
		},
	}
	if diff := cmp.Diff(want, snapshot); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	assert.EqualValues(t, 1, exchanges.Load())

	set, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, idToken, set.IDToken)

	assert.Equal(t, "http://localhost:3000/?foo=bar", loc.Current().String(),
		"the code and state must be stripped from the URL")

	_, ok := session.LoadPending(store)
	assert.False(t, ok, "the pending callback must be cleared after a resolved exchange")
}

func TestManagerInitializeConvergesOnFinishedExchange(t *testing.T) {
	idToken := mintIDToken(t, "user-42", map[string]any{"cognito:username": "jdoe"})

	var exchanges atomic.Int64

	tokenSrv := startTokenServer(t, idToken, &exchanges)
	statusSrv := startStatusServer(t, http.StatusOK, `{}`)

	cfg := testConfig()
	store := session.NewCache(cfg.Flow.SessionTTL)
	cache := tokenmock.NewCache(tokenmock.WithSet(token.Set{
		IDToken:   idToken,
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	manager := newTestManager(t, cfg, store, cache, tokenSrv.URL, statusSrv.URL, &recordingNavigator{})

	// Mid-window state of a duplicate invocation: the first one exchanged
	// and consumed the login session, but its pending cleanup has not run.
	session.SavePending(store, session.Pending{Code: "abc", State: "xyz"})

	snapshot := manager.Initialize(context.Background(), mustLocation(t, "http://localhost:3000/"))

	assert.Equal(t, flow.StateApproved, snapshot.State, "The duplicate must converge, not fail validation")
	require.NotNil(t, snapshot.User)
	assert.Equal(t, "jdoe", snapshot.User.Username)
	assert.Zero(t, exchanges.Load(), "The duplicate must not exchange again")

	_, ok := session.LoadPending(store)
	assert.False(t, ok, "The duplicate must clear the pending callback")
}

func TestManagerInitializeRejectsForeignState(t *testing.T) {
	var exchanges atomic.Int64

	tokenSrv := startTokenServer(t, "unused", &exchanges)
	statusSrv := startStatusServer(t, http.StatusOK, `{}`)

	cfg := testConfig()
	store := session.NewCache(cfg.Flow.SessionTTL)
	manager := newTestManager(t, cfg, store, tokenmock.NewCache(), tokenSrv.URL, statusSrv.URL, &recordingNavigator{})

	session.SaveLogin(store, session.Login{Verifier: "the-verifier", State: "xyz"})
	loc := mustLocation(t, "http://localhost:3000/?code=abc&state=wrong")

	snapshot := manager.Initialize(context.Background(), loc)

	assert.Equal(t, flow.StateError, snapshot.State)
	assert.Zero(t, exchanges.Load(), "a state mismatch must never reach the token endpoint")

	_, ok := session.LoadLogin(store)
	assert.False(t, ok, "the login session must be discarded on a state mismatch")
	_, ok = session.LoadPending(store)
	assert.False(t, ok, "the pending callback must be discarded on a state mismatch")
}

func TestManagerInitializeWithoutCallback(t *testing.T) {
	idToken := mintIDToken(t, "user-42", map[string]any{"cognito:username": "jdoe"})

	tests := []struct {
		name      string
		cache     *tokenmock.Cache
		wantState flow.State
	}{
		{
			name:      "empty cache yields signed out",
			cache:     tokenmock.NewCache(),
			wantState: flow.StateSignedOut,
		},
		{
			name: "expired cache yields signed out",
			cache: tokenmock.NewCache(tokenmock.WithSet(token.Set{
				IDToken:   idToken,
				ExpiresAt: time.Now().Add(-time.Minute),
			})),
			wantState: flow.StateSignedOut,
		},
		{
			name: "valid cache yields the account status",
			cache: tokenmock.NewCache(tokenmock.WithSet(token.Set{
				IDToken:   idToken,
				ExpiresAt: time.Now().Add(time.Hour),
			})),
			wantState: flow.StateApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exchanges atomic.Int64

			tokenSrv := startTokenServer(t, idToken, &exchanges)
			statusSrv := startStatusServer(t, http.StatusOK, `{}`)

			cfg := testConfig()
			store := session.NewCache(cfg.Flow.SessionTTL)
			manager := newTestManager(t, cfg, store, tt.cache, tokenSrv.URL, statusSrv.URL, &recordingNavigator{})

			loc := mustLocation(t, "http://localhost:3000/")
			snapshot := manager.Initialize(context.Background(), loc)

			assert.Equal(t, tt.wantState, snapshot.State)
			assert.Zero(t, exchanges.Load(), "no callback means no exchange")
		})
	}
}

func TestManagerStatusMapping(t *testing.T) {
	idToken := mintIDToken(t, "user-42", nil)

	tests := []struct {
		name       string
		statusCode int
		body       string
		wantState  flow.State
	}{
		{
			name:       "active account",
			statusCode: http.StatusOK,
			body:       `{}`,
			wantState:  flow.StateApproved,
		},
		{
			name:       "deactivated account",
			statusCode: http.StatusForbidden,
			body:       `{"code": "ACCOUNT_DESACTIVATED"}`,
			wantState:  flow.StateDeactivated,
		},
		{
			name:       "forbidden without a deactivation code",
			statusCode: http.StatusForbidden,
			body:       `{"code": "SOMETHING_ELSE"}`,
			wantState:  flow.StatePending,
		},
		{
			name:       "backend failure",
			statusCode: http.StatusInternalServerError,
			body:       `{}`,
			wantState:  flow.StateError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statusSrv := startStatusServer(t, tt.statusCode, tt.body)

			cfg := testConfig()
			store := session.NewCache(cfg.Flow.SessionTTL)
			cache := tokenmock.NewCache(tokenmock.WithSet(token.Set{
				IDToken:   idToken,
				ExpiresAt: time.Now().Add(time.Hour),
			}))
			manager := newTestManager(t, cfg, store, cache, "http://unused", statusSrv.URL, &recordingNavigator{})

			snapshot := manager.Initialize(context.Background(), mustLocation(t, "http://localhost:3000/"))

			assert.Equal(t, tt.wantState, snapshot.State)
			require.NotNil(t, snapshot.User)
			assert.Equal(t, "user-42", snapshot.User.UserID)
		})
	}
}

func TestManagerRetryOnlyChecksStatus(t *testing.T) {
	idToken := mintIDToken(t, "user-42", nil)

	var exchanges atomic.Int64

	tokenSrv := startTokenServer(t, idToken, &exchanges)

	var statusCode atomic.Int64

	statusCode.Store(http.StatusInternalServerError)
	statusSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(statusCode.Load()))
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(statusSrv.Close)

	cfg := testConfig()
	store := session.NewCache(cfg.Flow.SessionTTL)
	cache := tokenmock.NewCache(tokenmock.WithSet(token.Set{
		IDToken:   idToken,
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	manager := newTestManager(t, cfg, store, cache, tokenSrv.URL, statusSrv.URL, &recordingNavigator{})

	snapshot := manager.Retry(context.Background())
	assert.Equal(t, flow.StateError, snapshot.State)

	statusCode.Store(http.StatusOK)

	snapshot = manager.Retry(context.Background())
	assert.Equal(t, flow.StateApproved, snapshot.State)
	assert.Zero(t, exchanges.Load(), "retry must never exchange a code")
}

func TestManagerRetryWithoutTokensIsSignedOut(t *testing.T) {
	cfg := testConfig()
	store := session.NewCache(cfg.Flow.SessionTTL)
	manager := newTestManager(t, cfg, store, tokenmock.NewCache(), "http://unused", "http://unused", &recordingNavigator{})

	snapshot := manager.Retry(context.Background())

	assert.Equal(t, flow.StateSignedOut, snapshot.State)
	assert.Nil(t, snapshot.User)
}

func TestManagerSignOut(t *testing.T) {
	idToken := mintIDToken(t, "user-42", nil)

	cfg := testConfig()
	store := session.NewCache(cfg.Flow.SessionTTL)
	cache := tokenmock.NewCache(tokenmock.WithSet(token.Set{
		IDToken:   idToken,
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	nav := &recordingNavigator{}
	manager := newTestManager(t, cfg, store, cache, "http://unused", "http://unused", nav)

	session.SaveLogin(store, session.Login{Verifier: "v", State: "s"})
	session.SavePending(store, session.Pending{Code: "abc", State: "s"})

	err := manager.SignOut(context.Background())
	require.NoError(t, err)

	_, loadErr := cache.Load(context.Background())
	assert.Error(t, loadErr, "the token cache must be empty after sign-out")

	_, ok := session.LoadLogin(store)
	assert.False(t, ok)
	_, ok = session.LoadPending(store)
	assert.False(t, ok)

	require.EqualValues(t, 1, nav.calls.Load())

	u, err := url.Parse(nav.urls[0])
	require.NoError(t, err)
	assert.Equal(t, "/logout", u.Path)
	assert.Equal(t, testClientID, u.Query().Get("client_id"))
	assert.Equal(t, cfg.Provider.LogoutURI, u.Query().Get("logout_uri"))
}
