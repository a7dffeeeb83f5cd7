package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireBearer(t *testing.T) {
	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer forged", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good-token", status: http.StatusNoContent},
		{name: "scheme is case insensitive", header: "bearer good-token", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subject string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p, ok := PrincipalFromContext(r.Context())
				require.True(t, ok)
				subject = p.Subject
				w.WriteHeader(http.StatusNoContent)
			})
			h := RequireBearer(fakeVerifier{valid: "good-token"}, slog.New(slog.DiscardHandler))(next)

			req := httptest.NewRequest(http.MethodGet, "/api/results/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
				assert.Empty(t, subject)
			} else {
				assert.Equal(t, "svc-uploader", subject)
			}
		})
	}
}

func TestRequireBearer_NilVerifierPassesThrough(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	RequireBearer(nil, nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results/x", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogging_RedactsWebhookToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })

	rec := httptest.NewRecorder()
	Logging(logger)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/s3cret", nil))

	out := buf.String()
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "/webhook/[redacted]")
	assert.Contains(t, out, `"status":202`)
}

func TestRecover_ReturnsInternalServerError(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	Recover(logger)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/results/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
