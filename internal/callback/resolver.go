// Package callback resolves the authorization response out of the current
// location. Initialization may run more than once concurrently for the same
// logical page load, so resolution is idempotent: the URL is parsed and
// sanitized exactly once, and every later caller recovers the same answer from
// the ephemeral store.
package callback

import (
	"crypto/hmac"

	"github.com/openkcm/auth-gate/internal/session"
)

// Resolve extracts a pending authorization callback, if any. When code and
// state are present in the current URL they are persisted and stripped from
// the visible URL in place; otherwise a previously persisted callback is
// returned unchanged.
func Resolve(loc Location, store session.Store) (session.Pending, bool) {
	u := loc.Current()
	q := u.Query()

	code := q.Get("code")
	state := q.Get("state")
	if code != "" && state != "" {
		pending := session.Pending{Code: code, State: state}
		session.SavePending(store, pending)

		q.Del("code")
		q.Del("state")
		u.RawQuery = q.Encode()
		loc.Replace(u)

		return pending, true
	}

	return session.LoadPending(store)
}

// Clear removes the pending callback and the exchange lock together. It runs
// on every terminal path, success or failure.
func Clear(store session.Store) {
	session.ClearPending(store)
}

// ValidateState compares the state returned by the provider against the one
// stored at sign-in. Exact, case-sensitive match; a mismatch is a CSRF-level
// failure and the flow must abort without attempting an exchange.
func ValidateState(returned, stored string) bool {
	if stored == "" {
		return false
	}

	return hmac.Equal([]byte(returned), []byte(stored))
}
