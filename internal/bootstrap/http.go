package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/target/detectq/config"
	httpx "github.com/target/detectq/internal/http"
	"golang.org/x/net/netutil"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// OnError receives a Serve failure after startup. Optional.
	OnError func(error)
}

// RouterServicesFrom maps the service container onto the router's inputs.
// Nil services are left as nil interfaces so their routes stay disabled.
func RouterServicesFrom(cfg *config.AppConfig, svcs ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	rs := httpx.RouterServices{
		WebhookToken:    cfg.HTTP.WebhookToken,
		MaxPayloadBytes: cfg.Storage.MaxPayloadBytes,
		Logger:          logger,
	}
	if svcs.Dispatcher != nil {
		rs.Dispatcher = svcs.Dispatcher
	}
	if svcs.Resolver != nil {
		rs.Resolver = svcs.Resolver
	}
	if svcs.Extractor != nil {
		rs.Extractor = svcs.Extractor
	}
	if svcs.Verifier != nil {
		rs.Verifier = svcs.Verifier
	}
	if svcs.Monitor != nil {
		rs.Monitor = svcs.Monitor.Service()
	}
	if svcs.Observability.Registry != nil {
		rs.Gatherer = svcs.Observability.Registry
	}
	return rs
}

// StartHTTPServer binds the listener and serves in the background.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := httpx.NewRouter(RouterServicesFrom(cfg.Config, cfg.Services, logger))
	ln, err := listen(cfg.Config.HTTP)
	if err != nil {
		return nil, err
	}

	server := newServer(handler, ln.Addr().String())
	go func() {
		logger.Info("starting HTTP server",
			"addr", server.Addr,
			"max_connections", cfg.Config.HTTP.MaxConnections)
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", serveErr)
			if cfg.OnError != nil {
				cfg.OnError(serveErr)
			}
		}
	}()

	return server, nil
}

// listen binds addr and caps concurrent connections when configured.
func listen(cfg config.HTTPConfig) (net.Listener, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}
	return ln, nil
}

func newServer(handler http.Handler, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}

	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}

	return nil
}
