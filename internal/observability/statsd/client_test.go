package statsd

import (
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"
)

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" dispatch/submit ": "dispatch_submit",
		"foo..bar":          "foo.bar",
		".monitor.tick.":    "monitor.tick",
		"":                  "",
	}
	for input, want := range tests {
		if got := normalizeMetricName(input); got != want {
			t.Fatalf("normalizeMetricName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatLine(t *testing.T) {
	t.Parallel()

	c := &Client{
		prefix:     "detectq",
		globalTags: map[string]string{"env": "prod", " service ": " api "},
	}
	got := c.formatLine("dispatch.submit", "1", "c", map[string]string{
		"result": " success ",
		"":       "ignored",
		"env":    "stage",
	})
	want := "detectq.dispatch.submit:1|c|#env:stage,result:success,service:api"
	if got != want {
		t.Fatalf("formatLine mismatch\n got: %q\nwant: %q", got, want)
	}

	bare := &Client{}
	if got := bare.formatLine("x", "2.5", "g", nil); got != "x:2.5|g" {
		t.Fatalf("formatLine without tags = %q", got)
	}
	if got := bare.formatLine("  ", "1", "c", nil); got != "" {
		t.Fatalf("formatLine with empty name = %q, want empty", got)
	}
}

func TestClientWritesOverConnection(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	c := &Client{prefix: "detectq", conn: clientConn, logger: slog.Default()}
	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := peerConn.Read(buf)
		got <- string(buf[:n])
	}()

	c.Timing("monitor.tick", 1500*time.Microsecond, nil)

	select {
	case line := <-got:
		if line != "detectq.monitor.tick:1.5|ms" {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for metric")
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	c := &Client{conn: clientConn}
	if !c.Enabled() {
		t.Fatal("expected Enabled with active connection")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if c.Enabled() {
		t.Fatal("expected disabled after Close")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}

	var nilClient *Client
	nilClient.Count("x", 1, nil)
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Enabled: true, Address: "   "})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if c.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}
	c.Gauge("ignored", 1, nil)
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil {
		t.Fatal("expected NewClient to error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}
