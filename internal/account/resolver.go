// Package account classifies the backend's answer about the signed-in
// account. The check is a pure read; it never touches the token caches.
package account

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/auth-gate/internal/serviceerr"
)

type Status string

const (
	StatusApproved    Status = "approved"
	StatusPending     Status = "pending"
	StatusDeactivated Status = "deactivated"
	StatusError       Status = "error"
)

// deactivationCode is the marker the backend puts in a 403 body for a
// deactivated account, spelled the way the backend spells it.
const deactivationCode = "ACCOUNT_DESACTIVATED"

const maxBody = 4096

type Resolver struct {
	client   *http.Client
	endpoint string
}

func NewResolver(client *http.Client, endpoint string) *Resolver {
	return &Resolver{
		client:   client,
		endpoint: endpoint,
	}
}

// Check calls the status endpoint with the identity token as bearer
// credential. 200 means approved; a 403 carrying the deactivation code means
// deactivated; any other 403 means the account is still awaiting approval.
// Everything else is an error classification, returned with detail for the
// caller to log.
func (r *Resolver) Check(ctx context.Context, idToken string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return StatusError, fmt.Errorf("%w: creating request: %w", serviceerr.ErrStatusCheckFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+idToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return StatusError, fmt.Errorf("%w: executing request: %w", serviceerr.ErrStatusCheckFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return StatusApproved, nil
	case resp.StatusCode == http.StatusForbidden:
		return r.classifyForbidden(ctx, resp.Body), nil
	default:
		return StatusError, fmt.Errorf("%w: unexpected status %d", serviceerr.ErrStatusCheckFailed, resp.StatusCode)
	}
}

func (r *Resolver) classifyForbidden(ctx context.Context, body io.Reader) Status {
	var payload struct {
		Code string `json:"code"`
	}

	data, err := io.ReadAll(io.LimitReader(body, maxBody))
	if err == nil {
		err = json.Unmarshal(data, &payload)
	}
	if err != nil {
		// A malformed 403 body is indistinguishable from "awaiting
		// approval" as far as the UI goes, but it deserves a trace.
		slogctx.Warn(ctx, "Unparsable status response body, classifying as pending", "error", err)

		return StatusPending
	}

	if payload.Code == deactivationCode {
		return StatusDeactivated
	}

	return StatusPending
}
