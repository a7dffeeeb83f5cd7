package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

func newDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			_ = json.NewEncoder(w).Encode(discoveryDocument{
				Issuer:                srv.URL,
				AuthorizationEndpoint: srv.URL + "/auth",
				TokenEndpoint:         srv.URL + "/token",
				JwksURI:               srv.URL + "/jwks",
			})
		case "/jwks":
			_, _ = w.Write([]byte(`{"keys":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewVerifier_Success(t *testing.T) {
	srv := newDiscoveryServer(t)

	v, err := NewVerifier(context.Background(), VerifierConfig{Issuer: srv.URL, Audience: "detectq"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL, v.Issuer())
}

func TestNewVerifier_AcceptsDiscoveryURL(t *testing.T) {
	srv := newDiscoveryServer(t)

	v, err := NewVerifier(context.Background(), VerifierConfig{
		Issuer: srv.URL + "/.well-known/openid-configuration",
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL, v.Issuer())
}

func TestNewVerifier_Errors(t *testing.T) {
	_, err := NewVerifier(context.Background(), VerifierConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer is required")

	broken := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(broken.Close)
	_, err = NewVerifier(context.Background(), VerifierConfig{Issuer: broken.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oidc new provider")
}

func TestVerify_RejectsMalformedToken(t *testing.T) {
	srv := newDiscoveryServer(t)
	v, err := NewVerifier(context.Background(), VerifierConfig{Issuer: srv.URL})
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "")
	require.Error(t, err)

	_, err = v.Verify(context.Background(), "not.a.jwt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify token")
}

func TestMapClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims tokenClaims
		want   string
		email  string
		groups []string
	}{
		{
			name:   "standard claims",
			claims: tokenClaims{Sub: "abc", Email: "a@example.com", Groups: []string{"ops"}},
			want:   "abc",
			email:  "a@example.com",
			groups: []string{"ops"},
		},
		{
			name:   "ad claims take precedence",
			claims: tokenClaims{Sub: "abc", SamAccountName: "z001", Mail: "z@example.com", MemberOf: []string{"cn=ops"}},
			want:   "z001",
			email:  "z@example.com",
			groups: []string{"cn=ops"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mapClaims(tt.claims)
			assert.Equal(t, tt.want, p.Subject)
			assert.Equal(t, tt.email, p.Email)
			assert.Equal(t, tt.groups, p.Groups)
		})
	}
}
