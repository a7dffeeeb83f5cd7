package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Delivery describes one JSON POST with linear-backoff retries.
type Delivery struct {
	Client     *http.Client
	URL        string
	Body       []byte
	RetryLimit int
	// Service names the destination in error messages.
	Service string
}

// PostJSON sends d.Body to d.URL, retrying up to d.RetryLimit extra times.
// It returns the last error when every attempt fails.
func PostJSON(ctx context.Context, d Delivery) error {
	attempts := max(d.RetryLimit, 0) + 1
	var lastErr error
	for attempt := range attempts {
		if lastErr = postOnce(ctx, d); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func postOnce(ctx context.Context, d Delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", d.Service, err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := d.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", d.Service, err)
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	closeErr := resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", d.Service, resp.Status, strings.TrimSpace(string(body)))
	}
	if readErr != nil || closeErr != nil {
		return errors.Join(readErr, closeErr)
	}
	return nil
}

// Fallback returns fallback when value is blank.
func Fallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
