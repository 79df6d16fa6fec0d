package config

import (
	"errors"
	"fmt"
	"strings"
)

// The provider's hosted endpoints all live under one domain.
const (
	authorizePath = "/oauth2/authorize"
	tokenPath     = "/oauth2/token"
	logoutPath    = "/logout"
)

// MakeEndpoint joins the provider domain with one of the hosted paths. The
// domain may be given with or without a scheme; https is assumed.
func MakeEndpoint(p Provider, path string) (string, error) {
	domain := strings.TrimSuffix(strings.TrimSpace(p.Domain), "/")
	if domain == "" {
		return "", errors.New("provider domain is not configured")
	}

	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}

	return domain + path, nil
}

func AuthorizeEndpoint(p Provider) (string, error) {
	return MakeEndpoint(p, authorizePath)
}

func TokenEndpoint(p Provider) (string, error) {
	return MakeEndpoint(p, tokenPath)
}

func LogoutEndpoint(p Provider) (string, error) {
	return MakeEndpoint(p, logoutPath)
}

// Validate rejects a provider section the flow cannot work with.
func Validate(p Provider) error {
	if _, err := MakeEndpoint(p, ""); err != nil {
		return err
	}
	if p.RedirectURI == "" {
		return fmt.Errorf("provider redirectURI is not configured")
	}

	return nil
}
