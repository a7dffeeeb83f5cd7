// Package httpx provides the detectq HTTP surface: submissions, webhooks,
// result lookups, health and metrics.
package httpx

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/target/detectq/internal/domain/model"
)

// Submitter accepts a work request and returns its tracking handle.
type Submitter interface {
	Submit(ctx context.Context, req *model.WorkRequest) (*model.TrackingHandle, error)
}

// WorkRequestExtractor turns an arbitrary webhook body into a work request.
type WorkRequestExtractor interface {
	Extract(body []byte) (*model.WorkRequest, error)
}

// submissionRequest is the JSON body of POST /api/submissions.
// Payload is standard base64 on the wire.
type submissionRequest struct {
	CallerRef   string            `json:"caller_ref"`
	Payload     []byte            `json:"payload"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

const statusAccepted = "accepted"

type submissionResponse struct {
	JobID      string           `json:"job_id"`
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	PayloadRef model.PayloadRef `json:"payload_ref"`
}

func acceptedResponse(h *model.TrackingHandle) submissionResponse {
	return submissionResponse{
		JobID:      h.JobID,
		Status:     statusAccepted,
		Message:    h.Acknowledgement,
		PayloadRef: h.PayloadRef,
	}
}

// SubmissionHandlers provides HTTP handlers for accepting work.
type SubmissionHandlers struct {
	Dispatcher   Submitter
	Extractor    WorkRequestExtractor
	WebhookToken string
	// MaxPayloadBytes is the dispatcher's payload limit; request bodies are
	// capped to fit its base64 encoding.
	MaxPayloadBytes int
	Logger          *slog.Logger
}

// Submit handles POST /api/submissions.
func (h *SubmissionHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if !DecodeJSON(w, r, &req, MaxBodyBytes(h.MaxPayloadBytes)) {
		return
	}

	h.dispatch(w, r, &model.WorkRequest{
		CallerRef:   req.CallerRef,
		Payload:     req.Payload,
		ContentType: req.ContentType,
		Metadata:    req.Metadata,
	})
}

// Webhook handles POST /webhook/{token}. The body shape is configured through
// JMESPath expressions on the extractor.
func (h *SubmissionHandlers) Webhook(w http.ResponseWriter, r *http.Request) {
	if !h.tokenMatches(r.PathValue("token")) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("not found")})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes(h.MaxPayloadBytes)))
	if err != nil {
		WriteError(w, ErrorParams{Code: StatusForError(err), ErrCode: "invalid_body", Err: err})
		return
	}

	req, err := h.Extractor.Extract(body)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	h.dispatch(w, r, req)
}

func (h *SubmissionHandlers) dispatch(w http.ResponseWriter, r *http.Request, req *model.WorkRequest) {
	handle, err := h.Dispatcher.Submit(r.Context(), req)
	if err != nil {
		if h.Logger != nil && StatusForError(err) >= http.StatusInternalServerError {
			h.Logger.ErrorContext(r.Context(), "submission failed",
				slog.String("caller_ref", req.CallerRef),
				slog.String("error", err.Error()))
		}
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, acceptedResponse(handle))
}

func (h *SubmissionHandlers) tokenMatches(got string) bool {
	if h.WebhookToken == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.WebhookToken)) == 1
}
