package flow_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"github.com/openkcm/auth-gate/internal/callback"
	"github.com/openkcm/auth-gate/internal/config"
	"github.com/openkcm/auth-gate/internal/flow"
)

const testClientID = "my-client-id"

// mintIDToken signs an RS256 identity token with the given claims.
func mintIDToken(t *testing.T, subject string, custom map[string]any) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	builder := jwt.Signed(signer).Claims(jwt.Claims{Subject: subject})
	if custom != nil {
		builder = builder.Claims(custom)
	}

	raw, err := builder.Serialize()
	require.NoError(t, err)

	return raw
}

func mustLocation(t *testing.T, rawURL string) *callback.StaticLocation {
	t.Helper()

	loc, err := callback.NewStaticLocation(rawURL)
	require.NoError(t, err)

	return loc
}

// startStatusServer answers every status check with the given response.
func startStatusServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Provider = config.Provider{
		Domain:      "auth.example.com",
		RedirectURI: "http://localhost:3000/",
		LogoutURI:   "http://localhost:3000/",
		AdminScope:  "aws.cognito.signin.user.admin",
	}
	cfg.Flow = config.Flow{
		PollInterval: 10 * time.Millisecond,
		PollBudget:   20,
		SessionTTL:   time.Minute,
	}

	return cfg
}

// recordingNavigator captures redirect requests instead of navigating.
type recordingNavigator struct {
	urls  []string
	calls atomic.Int64
}

func (n *recordingNavigator) Redirect(_ context.Context, url string) error {
	n.calls.Add(1)
	n.urls = append(n.urls, url)

	return nil
}

var _ = flow.Navigator(&recordingNavigator{})
