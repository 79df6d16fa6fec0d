package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-gate/internal/serviceerr"
	"github.com/openkcm/auth-gate/internal/session"
)

// maxErrorBody bounds how much of a failed token response is kept as detail.
const maxErrorBody = 2048

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Exchanger performs the code-for-tokens call against the provider's token
// endpoint.
type Exchanger struct {
	client      *http.Client
	endpoint    string
	clientID    string
	redirectURI string
	store       session.Store

	now func() time.Time
}

func NewExchanger(client *http.Client, endpoint, clientID, redirectURI string, store session.Store) *Exchanger {
	return &Exchanger{
		client:      client,
		endpoint:    endpoint,
		clientID:    clientID,
		redirectURI: redirectURI,
		store:       store,
		now:         time.Now,
	}
}

// Exchange trades an authorization code for a token set. It requires a PKCE
// verifier in the current login session and fails before any network call
// without one. On success the login session is cleared: the verifier is
// single-use.
func (e *Exchanger) Exchange(ctx context.Context, code string) (Set, error) {
	login, ok := session.LoadLogin(e.store)
	if !ok || login.Verifier == "" {
		return Set{}, serviceerr.ErrMissingVerifier
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", e.clientID)
	data.Set("code", code)
	data.Set("redirect_uri", e.redirectURI)
	data.Set("code_verifier", login.Verifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return Set{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return Set{}, fmt.Errorf("%w: executing request: %w", serviceerr.ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return Set{}, fmt.Errorf("%w: status %d: %s", serviceerr.ErrExchangeFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return Set{}, fmt.Errorf("%w: decoding response: %w", serviceerr.ErrExchangeFailed, err)
	}

	session.ClearLogin(e.store)
	slogctx.Info(ctx, "Exchanged the authorization code for tokens")

	return Set{
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    e.now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
	}, nil
}
