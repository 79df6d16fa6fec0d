// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	Provider   Provider   `yaml:"provider"`
	Backend    Backend    `yaml:"backend"`
	TokenCache TokenCache `yaml:"tokenCache"`
	Flow       Flow       `yaml:"flow"`
}

// Provider describes the identity provider's hosted sign-in surface. All
// values are opaque to the flow; they are only assembled into URLs.
type Provider struct {
	Domain      string              `yaml:"domain"`
	ClientID    commoncfg.SourceRef `yaml:"clientID"`
	RedirectURI string              `yaml:"redirectURI"`
	LogoutURI   string              `yaml:"logoutURI"`
	AdminScope  string              `yaml:"adminScope" default:"aws.cognito.signin.user.admin"`
	Lang        string              `yaml:"lang"`
}

type Backend struct {
	StatusURL string `yaml:"statusURL"`
}

type TokenCache struct {
	Kind   string    `yaml:"kind" default:"file"`
	File   FileCache `yaml:"file"`
	ValKey ValKey    `yaml:"valkey"`
}

type FileCache struct {
	Path string `yaml:"path"`
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix" default:"auth-gate"`
}

type Flow struct {
	PollInterval time.Duration `yaml:"pollInterval" default:"250ms"`
	PollBudget   int           `yaml:"pollBudget" default:"20"`
	SessionTTL   time.Duration `yaml:"sessionTTL" default:"15m"`
}
