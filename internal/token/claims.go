package token

import (
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// signatureAlgorithms lists the signing algorithms accepted when parsing an
// identity token.
var signatureAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.PS256, jose.PS384, jose.PS512,
}

// UserInfo is derived from the identity token's claims on every read; it is
// never persisted on its own.
type UserInfo struct {
	Username      string `json:"username"`
	UserID        string `json:"userId"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
	GivenName     string `json:"givenName,omitempty"`
	FamilyName    string `json:"familyName,omitempty"`
	Name          string `json:"name,omitempty"`
}

// UserFromIDToken decodes the identity token's claims into a UserInfo. The
// token arrived over the code exchange the client itself performed, so the
// signature is not re-verified here.
func UserFromIDToken(idToken string) (UserInfo, error) {
	tok, err := jwt.ParseSigned(idToken, signatureAlgorithms)
	if err != nil {
		return UserInfo{}, fmt.Errorf("parsing id token: %w", err)
	}

	type customClaims struct {
		CognitoUsername   string `json:"cognito:username"`
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
		EmailVerified     bool   `json:"email_verified"`
		GivenName         string `json:"given_name"`
		FamilyName        string `json:"family_name"`
		Name              string `json:"name"`
	}

	var standard jwt.Claims
	var custom customClaims
	if err := tok.UnsafeClaimsWithoutVerification(&standard, &custom); err != nil {
		return UserInfo{}, fmt.Errorf("decoding id token claims: %w", err)
	}

	username := custom.CognitoUsername
	if username == "" {
		username = custom.PreferredUsername
	}
	if username == "" {
		username = standard.Subject
	}

	return UserInfo{
		Username:      username,
		UserID:        standard.Subject,
		Email:         custom.Email,
		EmailVerified: custom.EmailVerified,
		GivenName:     custom.GivenName,
		FamilyName:    custom.FamilyName,
		Name:          custom.Name,
	}, nil
}
