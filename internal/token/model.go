package token

import "time"

// Set is the token set returned by a code exchange. The refresh token is
// stored for completeness but never used to renew silently.
type Set struct {
	AccessToken  string    `json:"accessToken"`
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Valid reports whether the set can still be trusted. The expiry must be
// strictly in the future; an expired set is treated as absent.
func (s Set) Valid(now time.Time) bool {
	return s.IDToken != "" && s.ExpiresAt.After(now)
}
