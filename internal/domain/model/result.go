package model

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// ResultRecord is written once per job by a worker. Its presence means the
// job is complete; its absence means the job is still pending.
type ResultRecord struct {
	JobID       string         `json:"job_id"       db:"job_id"`
	Labels      map[string]int `json:"labels"       db:"labels"`
	CompletedAt time.Time      `json:"completed_at" db:"completed_at"`
}

// ResolutionStatus is the outcome of a result lookup.
type ResolutionStatus string

const (
	// ResolutionPending means no result has been written yet.
	ResolutionPending ResolutionStatus = "pending"
	// ResolutionComplete means a result record exists.
	ResolutionComplete ResolutionStatus = "complete"
	// ResolutionNotFound means the job id was never accepted.
	// Only reported when acceptance markers are enabled.
	ResolutionNotFound ResolutionStatus = "not_found"
)

// Resolution is returned by the result resolver.
type Resolution struct {
	JobID       string           `json:"job_id"`
	Status      ResolutionStatus `json:"status"`
	Summary     string           `json:"summary,omitempty"`
	Labels      map[string]int   `json:"labels,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

const summaryHeader = "Objects Detected:\n"

// FormatSummary renders label counts as text sorted by label, so equal input
// always yields byte-identical output.
func FormatSummary(labels map[string]int) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(summaryHeader)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(labels[k]))
		b.WriteByte('\n')
	}
	return b.String()
}

// CountLabels folds a list of detected class names into label counts.
func CountLabels(classes []string) map[string]int {
	out := make(map[string]int, len(classes))
	for _, c := range classes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out[c]++
	}
	return out
}
