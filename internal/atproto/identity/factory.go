package identity

import (
	"net/http"
	"time"
)

// Config holds configuration for the identity resolver
type Config struct {
	HTTPClient *http.Client
	PLCURL     string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		PLCURL:     "https://plc.directory",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewResolver creates the identity resolver shared by all requests.
// It is built once at startup and never mutated afterwards.
func NewResolver(config Config) Resolver {
	defaults := DefaultConfig()
	if config.PLCURL == "" {
		config.PLCURL = defaults.PLCURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = defaults.HTTPClient
	}

	return newBaseResolver(config.PLCURL, config.HTTPClient)
}
