package flow

import (
	"github.com/openkcm/auth-gate/internal/account"
	"github.com/openkcm/auth-gate/internal/token"
)

// State is what the presentation layer renders. Initialize only returns
// terminal states or signed-out; an intermediate "loading" indicator, if a
// front end wants one, is presentation-side.
type State string

const (
	StateSignedOut   State = "signed-out"
	StateApproved    State = State(account.StatusApproved)
	StatePending     State = State(account.StatusPending)
	StateDeactivated State = State(account.StatusDeactivated)
	StateError       State = State(account.StatusError)
)

// Snapshot is the (user, status) pair published to the presentation layer.
// User is nil unless a token set was available and its claims decoded.
type Snapshot struct {
	State State           `json:"state"`
	User  *token.UserInfo `json:"user,omitempty"`
}
