package upload

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ErrMissingCredentials is returned when no pinning token is configured
var ErrMissingCredentials = errors.New("upload: LAYERFORGE_PINATA_JWT is not set")

// Credentials are read from the environment only, never from the config file
type Credentials struct {
	JWT string `env:"LAYERFORGE_PINATA_JWT"`
}

// LoadCredentials parses credentials from environment variables
func LoadCredentials() (Credentials, error) {
	var creds Credentials
	if err := env.Parse(&creds); err != nil {
		return Credentials{}, fmt.Errorf("parse env: %w", err)
	}
	if creds.JWT == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}
