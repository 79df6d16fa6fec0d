package session

// Login is the PKCE session created at sign-in time. It lives only in the
// ephemeral store and is single-use: a successful exchange or a state-validation
// failure removes it. Starting a new sign-in overwrites any prior Login.
type Login struct {
	Verifier string `json:"verifier"`
	State    string `json:"state"`
}

// Pending is an authorization callback observed in the location URL, kept so a
// duplicate concurrent initialization can recover it after the URL has been
// sanitized.
type Pending struct {
	Code  string `json:"code"`
	State string `json:"state"`
}
