package syncsdk

import (
	"fmt"
	"net/url"
)

const (
	DefaultBaseURL = "https://docbox.net"
)

// Config is the configuration for the DocBox SDK.
type Config struct {
	// BaseURL is the server the sync API lives on. Required.
	BaseURL string
	// Credentials supplies the bearer token per connect attempt.
	// Required for authenticated servers.
	Credentials CredentialProvider
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("sdk: invalid server url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("sdk: invalid server url scheme %q", u.Scheme)
	}

	return nil
}
