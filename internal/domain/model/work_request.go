package model

import (
	"fmt"
	"strings"
)

// DefaultContentType is applied when a request does not name one.
const DefaultContentType = "application/octet-stream"

// WorkRequest is the validated, typed form of an inbound submission.
// It is consumed by the dispatcher and never persisted on its own.
type WorkRequest struct {
	CallerRef   string            `json:"caller_ref"`
	Payload     []byte            `json:"payload"`
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ValidationIssue describes why a WorkRequest was rejected.
type ValidationIssue struct {
	Field   string
	Message string
}

func (v *ValidationIssue) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Validate checks the request carries a payload and a caller reference.
// maxBytes <= 0 disables the size check.
func (r *WorkRequest) Validate(maxBytes int) error {
	if r == nil {
		return &ValidationIssue{Field: "request", Message: "request is required"}
	}
	if len(r.Payload) == 0 {
		return &ValidationIssue{Field: "payload", Message: "payload is required"}
	}
	if maxBytes > 0 && len(r.Payload) > maxBytes {
		return &ValidationIssue{
			Field:   "payload",
			Message: fmt.Sprintf("payload is %d bytes, limit is %d", len(r.Payload), maxBytes),
		}
	}
	if strings.TrimSpace(r.CallerRef) == "" {
		return &ValidationIssue{Field: "caller_ref", Message: "caller_ref is required"}
	}
	return nil
}

// NormalizedContentType returns the lower-cased media type without parameters.
func (r *WorkRequest) NormalizedContentType() string {
	ct := strings.ToLower(strings.TrimSpace(r.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		return DefaultContentType
	}
	return ct
}
