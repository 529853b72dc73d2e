package config

import (
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
)

// Providers builds the goth providers that have credentials configured.
func (c OAuthConfig) Providers(baseURL string) []goth.Provider {
	var providers []goth.Provider

	if c.GoogleClientID != "" && c.GoogleClientSecret != "" {
		providers = append(providers, google.New(
			c.GoogleClientID,
			c.GoogleClientSecret,
			baseURL+"/api/auth/oauth/google/callback",
			"email", "profile",
		))
	}

	if c.FacebookClientID != "" && c.FacebookClientSecret != "" {
		providers = append(providers, facebook.New(
			c.FacebookClientID,
			c.FacebookClientSecret,
			baseURL+"/api/auth/oauth/facebook/callback",
			"email",
		))
	}

	return providers
}
