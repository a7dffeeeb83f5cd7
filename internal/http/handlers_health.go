package httpx

import (
	"io"
	"net/http"

	"github.com/target/detectq/internal/domain/model"
)

const healthResponse = `{"status":"ok"}`

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// MonitorHealth reports the backlog monitor's liveness.
type MonitorHealth interface {
	Healthy() (model.MonitorStatus, bool)
}

type monitorHealthResponse struct {
	Status  string              `json:"status"`
	Monitor model.MonitorStatus `json:"monitor"`
}

// monitorHealthHandler serves 503 once the monitor stopped fatally or went stale.
func monitorHealthHandler(m MonitorHealth) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status, ok := m.Healthy()
		if !ok {
			WriteJSON(w, http.StatusServiceUnavailable, monitorHealthResponse{Status: "unhealthy", Monitor: status})
			return
		}
		WriteJSON(w, http.StatusOK, monitorHealthResponse{Status: "ok", Monitor: status})
	}
}
