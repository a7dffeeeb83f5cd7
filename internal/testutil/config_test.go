package testutil

import (
	"testing"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}
		cfg := DefaultTestDBConfig()
		if cfg.Host != "localhost" || cfg.Port != "55432" {
			t.Errorf("expected localhost:55432, got %s:%s", cfg.Host, cfg.Port)
		}
		if cfg.User != "detectq" || cfg.DBName != "detectq" {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")
		cfg := DefaultTestDBConfig()
		if cfg.Host != "postgres" || cfg.Port != "5432" {
			t.Errorf("expected postgres:5432, got %s:%s", cfg.Host, cfg.Port)
		}
	})
}

func TestBuilders(t *testing.T) {
	req := NewWorkRequest().WithCallerRef("99").WithContentType("image/png").Build()
	if req.CallerRef != "99" || req.ContentType != "image/png" || len(req.Payload) == 0 {
		t.Errorf("unexpected request: %+v", req)
	}

	rec := NewResultRecord("job-1").WithLabel("dog", 2).Build()
	if rec.JobID != "job-1" || rec.Labels["dog"] != 2 {
		t.Errorf("unexpected record: %+v", rec)
	}
}
