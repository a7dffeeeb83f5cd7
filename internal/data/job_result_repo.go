package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/detectq/internal/core"
	"github.com/target/detectq/internal/data/pgxutil"
	"github.com/target/detectq/internal/domain/model"
	apperrors "github.com/target/detectq/internal/errors"
)

var _ core.ResultStore = (*JobResultRepo)(nil)

// JobResultRepo is a Postgres-backed ResultStore.
type JobResultRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

// NewJobResultRepo constructs a JobResultRepo.
func NewJobResultRepo(db *sql.DB) *JobResultRepo {
	return &JobResultRepo{DB: db, Now: time.Now}
}

type jobResultRow struct {
	JobID       string    `db:"job_id"`
	Labels      []byte    `db:"labels"`
	CompletedAt time.Time `db:"completed_at"`
}

// Put stores or replaces the result for rec.JobID. The last write wins.
func (r *JobResultRepo) Put(ctx context.Context, rec *model.ResultRecord) error {
	if r == nil || r.DB == nil {
		return ErrJobResultsNotConfigured
	}
	if rec == nil || rec.JobID == "" {
		return ErrJobIDRequired
	}

	labels := rec.Labels
	if labels == nil {
		labels = map[string]int{}
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = r.now()
	}

	const query = `
		INSERT INTO job_results (job_id, labels, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (job_id)
		DO UPDATE SET
			labels = EXCLUDED.labels,
			completed_at = EXCLUDED.completed_at,
			updated_at = now();`
	if _, err := r.DB.ExecContext(ctx, query, rec.JobID, raw, completedAt.UTC()); err != nil {
		return apperrors.Storage(apperrors.MapDBError(err), "upsert job_results")
	}
	return nil
}

// Get retrieves the result for jobID. A missing row is reported as found=false.
func (r *JobResultRepo) Get(ctx context.Context, jobID string) (*model.ResultRecord, bool, error) {
	if r == nil || r.DB == nil {
		return nil, false, ErrJobResultsNotConfigured
	}
	if jobID == "" {
		return nil, false, ErrJobIDRequired
	}

	const query = `
		SELECT job_id, labels, completed_at
		FROM job_results
		WHERE job_id = $1`

	var row jobResultRow
	err := pgxutil.RawConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, jobID)
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[jobResultRow])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Storage(apperrors.MapDBError(err), "get job_results")
	}

	rec := &model.ResultRecord{JobID: row.JobID, CompletedAt: row.CompletedAt}
	if err := json.Unmarshal(row.Labels, &rec.Labels); err != nil {
		return nil, false, apperrors.Storage(err, "decode job_results labels")
	}
	return rec, true, nil
}

func (r *JobResultRepo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
