// Package config holds the application configuration loaded from environment variables.
package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultCriteriaFile    = "criteria.json"
	DefaultCredentialsFile = "credentials.json"
	DefaultTokenFile       = "token.json"
	DefaultArtifactName    = "forwarded_emails.pdf"
	DefaultSubject         = "Forwarded Emails in PDF"
)

// Config is constructed once at startup and passed into every component
// that needs it.
type Config struct {
	// ForwardTo is the address the generated report is sent to.
	// Environment variable: SCREENER_FORWARD_TO
	ForwardTo string `koanf:"SCREENER_FORWARD_TO"`

	// CriteriaFile is the path to the search criteria JSON file.
	// Environment variable: SCREENER_CRITERIA_FILE
	CriteriaFile string `koanf:"SCREENER_CRITERIA_FILE"`

	// CredentialsFile is the path to the Google OAuth client secret JSON.
	// Environment variable: SCREENER_CREDENTIALS_FILE
	CredentialsFile string `koanf:"SCREENER_CREDENTIALS_FILE"`

	// TokenFile is the path of the cached OAuth token.
	// Environment variable: SCREENER_TOKEN_FILE
	TokenFile string `koanf:"SCREENER_TOKEN_FILE"`

	// ArtifactName is the base name of the generated PDF.
	// Environment variable: SCREENER_PDF_NAME
	ArtifactName string `koanf:"SCREENER_PDF_NAME"`

	// Subject is the subject line of the delivery email.
	// Environment variable: SCREENER_SUBJECT
	Subject string `koanf:"SCREENER_SUBJECT"`

	// MarkAsRead marks processed messages as read after successful
	// delivery. Defaults to true.
	// Environment variable: SCREENER_MARK_AS_READ
	MarkAsRead bool `koanf:"SCREENER_MARK_AS_READ"`

	// KeepArtifact leaves the generated PDF on disk after delivery.
	// Environment variable: SCREENER_KEEP_PDF
	KeepArtifact bool `koanf:"SCREENER_KEEP_PDF"`

	// PostgresDSN enables the report archive when set.
	// Environment variable: SCREENER_POSTGRES_DSN
	PostgresDSN string `koanf:"SCREENER_POSTGRES_DSN"`
}

// Load reads configuration from the environment and applies defaults.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.CriteriaFile == "" {
		cfg.CriteriaFile = DefaultCriteriaFile
	}
	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = DefaultCredentialsFile
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = DefaultTokenFile
	}
	if cfg.ArtifactName == "" {
		cfg.ArtifactName = DefaultArtifactName
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if !k.Exists("SCREENER_MARK_AS_READ") {
		cfg.MarkAsRead = true
	}

	return cfg, nil
}

// Validate checks the fields required for a full pipeline run.
func (c Config) Validate() error {
	if c.ForwardTo == "" {
		return fmt.Errorf("SCREENER_FORWARD_TO environment variable is required")
	}
	return nil
}
