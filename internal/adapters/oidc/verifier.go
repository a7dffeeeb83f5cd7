// Package oidc verifies API bearer tokens against an OpenID Connect issuer.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/target/detectq/internal/domain/auth"
	"golang.org/x/oauth2"
)

const defaultHTTPTimeout = 30 * time.Second

// VerifierConfig holds configuration for the bearer token verifier.
type VerifierConfig struct {
	// Issuer is the issuer URL. A full discovery URL is accepted as well.
	Issuer string
	// Audience is the expected aud claim. Empty skips the audience check.
	Audience   string
	HTTPClient *http.Client // Optional, defaults to a client with a 30s timeout
}

// Verifier checks signed ID tokens presented as bearer credentials.
type Verifier struct {
	issuer   string
	verifier *gooidc.IDTokenVerifier
}

// NewVerifier performs OIDC discovery once and returns a verifier bound to the issuer's keys.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("issuer is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	issuer := issuerFromDiscoveryURL(cfg.Issuer)
	// The key set fetches lazily with the context captured here, so it must outlive ctx.
	discoveryCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(discoveryCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Verifier{
		issuer: issuer,
		verifier: op.Verifier(&gooidc.Config{
			ClientID:          cfg.Audience,
			SkipClientIDCheck: cfg.Audience == "",
		}),
	}, nil
}

// Issuer returns the normalized issuer URL.
func (v *Verifier) Issuer() string { return v.issuer }

// Verify validates the raw token and maps its claims into a Principal.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (domainauth.Principal, error) {
	if rawToken == "" {
		return domainauth.Principal{}, errors.New("token is required")
	}
	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return domainauth.Principal{}, fmt.Errorf("verify token: %w", err)
	}
	var c tokenClaims
	if claimsErr := tok.Claims(&c); claimsErr != nil {
		return domainauth.Principal{}, fmt.Errorf("parse token claims: %w", claimsErr)
	}
	p := mapClaims(c)
	p.Issuer = tok.Issuer
	p.ExpiresAt = tok.Expiry
	return p, nil
}

// tokenClaims is a superset of standard OIDC and AD/ADFS claim shapes.
type tokenClaims struct {
	Sub            string   `json:"sub"`
	SamAccountName string   `json:"samaccountname"`
	Email          string   `json:"email"`
	Mail           string   `json:"mail"`
	Groups         []string `json:"groups"`
	MemberOf       []string `json:"memberof"`
}

func mapClaims(c tokenClaims) domainauth.Principal {
	groups := c.Groups
	if len(groups) == 0 {
		groups = c.MemberOf
	}
	return domainauth.Principal{
		Subject: firstNonEmpty(c.SamAccountName, c.Sub),
		Email:   firstNonEmpty(c.Email, c.Mail),
		Groups:  groups,
	}
}

func issuerFromDiscoveryURL(raw string) string {
	issuer := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return strings.TrimSuffix(issuer, ".well-known/openid-configuration")
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
