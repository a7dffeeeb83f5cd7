package config

import "strings"

// AuthConfig controls bearer token verification on /api/* routes.
// Verification is off when Issuer is empty.
type AuthConfig struct {
	Issuer   string `env:"AUTH_OIDC_ISSUER"`
	Audience string `env:"AUTH_OIDC_AUDIENCE"`
}

// Sanitize trims values.
func (a *AuthConfig) Sanitize() {
	a.Issuer = strings.TrimSpace(a.Issuer)
	a.Audience = strings.TrimSpace(a.Audience)
}

// Enabled reports whether bearer verification is configured.
func (a AuthConfig) Enabled() bool { return a.Issuer != "" }
