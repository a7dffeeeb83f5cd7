package httpx

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterServices holds all the services needed by the HTTP router.
// Optional members left nil disable their routes.
type RouterServices struct {
	Dispatcher Submitter
	Resolver   Resolver
	// Optional: webhook intake. Requires WebhookToken.
	Extractor    WorkRequestExtractor
	WebhookToken string
	// Payload limit used to size request body caps; 0 uses a fixed default.
	MaxPayloadBytes int
	// Optional: serves /healthz/monitor when the backlog monitor runs in-process.
	Monitor MonitorHealth
	// Optional: bearer verification for /api/*.
	Verifier TokenVerifier
	// Optional: serves /metrics.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	if services.Dispatcher != nil {
		submissions := &SubmissionHandlers{
			Dispatcher:   services.Dispatcher,
			Extractor:    services.Extractor,
			WebhookToken:    services.WebhookToken,
			MaxPayloadBytes: services.MaxPayloadBytes,
			Logger:          logger,
		}
		registerSubmissionRoutes(mux, submissions, services.Verifier, logger)
	}
	if services.Resolver != nil {
		results := &ResultHandlers{Resolver: services.Resolver, Logger: logger}
		registerResultRoutes(mux, results, services.Verifier, logger)
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	if services.Monitor != nil {
		mux.Handle("GET /healthz/monitor", monitorHealthHandler(services.Monitor))
	}
	if services.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(services.Gatherer, promhttp.HandlerOpts{}))
	}

	return Recover(logger)(Logging(logger)(mux))
}

func registerSubmissionRoutes(mux *http.ServeMux, h *SubmissionHandlers, v TokenVerifier, logger *slog.Logger) {
	auth := RequireBearer(v, logger)
	mux.Handle("POST /api/submissions", auth(http.HandlerFunc(h.Submit)))
	if h.Extractor != nil && h.WebhookToken != "" {
		mux.Handle("POST /webhook/{token}", http.HandlerFunc(h.Webhook))
	}
}

func registerResultRoutes(mux *http.ServeMux, h *ResultHandlers, v TokenVerifier, logger *slog.Logger) {
	mux.Handle("GET /api/results/{jobID}", RequireBearer(v, logger)(http.HandlerFunc(h.Get)))
	mux.Handle("GET /results", http.HandlerFunc(h.GetByQuery))
}
