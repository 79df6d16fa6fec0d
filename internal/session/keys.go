package session

import "encoding/json"

// One ephemeral key per datum: the PKCE verifier, the anti-CSRF state, the
// pending callback (JSON-encoded) and the exchange-in-flight flag.
const (
	keyVerifier = "auth.pkce_verifier"
	keyState    = "auth.state"
	keyPending  = "auth.pending_callback"
	keyExchange = "auth.exchange_in_flight"
)

// SaveLogin stores a fresh PKCE session, overwriting any prior one.
func SaveLogin(s Store, l Login) {
	s.Set(keyVerifier, l.Verifier)
	s.Set(keyState, l.State)
}

func LoadLogin(s Store) (Login, bool) {
	verifier, ok := s.Get(keyVerifier)
	if !ok {
		return Login{}, false
	}

	state, _ := s.Get(keyState)

	return Login{Verifier: verifier, State: state}, true
}

// ClearLogin removes the verifier and state. Called after a successful
// exchange (the verifier is single-use) and on state-validation failure.
func ClearLogin(s Store) {
	s.Delete(keyVerifier, keyState)
}

func SavePending(s Store, p Pending) {
	encoded, err := json.Marshal(p)
	if err != nil {
		// Pending is two strings; this cannot fail.
		panic(err)
	}

	s.Set(keyPending, string(encoded))
}

func LoadPending(s Store) (Pending, bool) {
	encoded, ok := s.Get(keyPending)
	if !ok {
		return Pending{}, false
	}

	var p Pending
	if err := json.Unmarshal([]byte(encoded), &p); err != nil {
		return Pending{}, false
	}

	return p, true
}

// ClearPending removes the pending callback and the exchange lock together,
// on every terminal path, so a stale lock cannot block a future sign-in.
func ClearPending(s Store) {
	s.Delete(keyPending, keyExchange)
}

// ClaimExchange atomically claims the exchange-in-flight lock. It reports
// whether the caller is now the owner; ownership is never transferred and only
// the owner releases it.
func ClaimExchange(s Store) bool {
	return s.SetIfAbsent(keyExchange, "1")
}

func ExchangeInFlight(s Store) bool {
	_, ok := s.Get(keyExchange)

	return ok
}
