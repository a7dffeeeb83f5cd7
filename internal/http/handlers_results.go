package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/target/detectq/internal/domain/model"
)

// Resolver looks up the state of a previously submitted job.
type Resolver interface {
	Resolve(ctx context.Context, jobID string) (*model.Resolution, error)
}

// ResultHandlers provides HTTP handlers for result lookups.
type ResultHandlers struct {
	Resolver Resolver
	Logger   *slog.Logger
}

// Get handles GET /api/results/{jobID}.
func (h *ResultHandlers) Get(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, r.PathValue("jobID"))
}

// GetByQuery handles GET /results?predictionId=, the lookup form handed to chat users.
func (h *ResultHandlers) GetByQuery(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, r.URL.Query().Get("predictionId"))
}

func (h *ResultHandlers) resolve(w http.ResponseWriter, r *http.Request, jobID string) {
	res, err := h.Resolver.Resolve(r.Context(), jobID)
	if err != nil {
		if h.Logger != nil && StatusForError(err) >= http.StatusInternalServerError {
			h.Logger.ErrorContext(r.Context(), "result lookup failed",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()))
		}
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, statusForResolution(res.Status), res)
}

func statusForResolution(s model.ResolutionStatus) int {
	switch s {
	case model.ResolutionComplete:
		return http.StatusOK
	case model.ResolutionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusAccepted
	}
}
