package serviceerr

import "errors"

var ErrNotFound = errors.New("not found")
var ErrStateMismatch = errors.New("returned state does not match the stored state")
var ErrMissingVerifier = errors.New("no pkce verifier in the current login session")
var ErrExchangeFailed = errors.New("token exchange failed")
var ErrExchangeTimeout = errors.New("timed out waiting for a concurrent token exchange")
var ErrStatusCheckFailed = errors.New("account status check failed")
