package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrJobResultsNotConfigured = errors.New("job results repository not configured")
	ErrJobIDRequired           = errors.New("job_id is required")
	ErrQueueNameRequired       = errors.New("queue name is required")
)
