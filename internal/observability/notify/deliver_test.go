package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_StopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := PostJSON(ctx, Delivery{URL: srv.URL, Body: []byte(`{}`), RetryLimit: 5, Service: "test"})
	require.Error(t, err)
}

func TestFailurePayload_DedupKey(t *testing.T) {
	assert.Equal(t, "monitor:workers", FailurePayload{Component: "monitor", Subject: "workers"}.DedupKey())
	assert.Equal(t, "monitor::timeout", FailurePayload{Component: "monitor", ErrorClass: "timeout"}.DedupKey())
	assert.Empty(t, FailurePayload{}.DedupKey())
}

func TestSinkFunc(t *testing.T) {
	var got FailurePayload
	var s Sink = SinkFunc(func(_ context.Context, p FailurePayload) error {
		got = p
		return nil
	})
	require.NoError(t, s.SendFailure(context.Background(), FailurePayload{Subject: "a"}))
	assert.Equal(t, "a", got.Subject)

	var nilFunc SinkFunc
	assert.NoError(t, nilFunc.SendFailure(context.Background(), FailurePayload{}))
}
