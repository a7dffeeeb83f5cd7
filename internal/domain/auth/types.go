package auth

// Package auth contains domain-level types for API caller authentication.
// It is pure and free of framework/adapter concerns.

import "time"

// Principal is the caller identity established from a verified bearer token.
// Adapters map provider-specific claims into this shape.
type Principal struct {
	Subject   string // stable caller identifier (sub, or samAccountName when present)
	Issuer    string
	Email     string
	Groups    []string
	ExpiresAt time.Time // absolute expiry from the token
}

// Anonymous reports whether the principal carries no subject.
func (p Principal) Anonymous() bool { return p.Subject == "" }

// Expired reports whether the token backing the principal expired before now.
// A zero expiry never expires.
func (p Principal) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
