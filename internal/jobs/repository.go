package jobs

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	Create(ctx context.Context, job *Job) error
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, durationMs int64) error
	MarkFailed(ctx context.Context, id, errorMsg string, durationMs int64) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, limit int) ([]*Job, error)
	CountByStatus(ctx context.Context, status string) (int, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, vod_id, clip_count, clip_length, status, error, duration_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.VODID, j.ClipCount, j.ClipLength, j.Status, nullString(j.Error), j.DurationMs,
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) MarkRunning(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, StatusRunning, "", 0)
}

func (r *SQLiteRepository) MarkCompleted(ctx context.Context, id string, durationMs int64) error {
	return r.setStatus(ctx, id, StatusCompleted, "", durationMs)
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id, errorMsg string, durationMs int64) error {
	return r.setStatus(ctx, id, StatusFailed, errorMsg, durationMs)
}

func (r *SQLiteRepository) setStatus(ctx context.Context, id, status, errorMsg string, durationMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, duration_ms = ?, updated_at = ?
		WHERE id = ?
	`, status, nullString(errorMsg), durationMs, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, vod_id, clip_count, clip_length, status, error, duration_ms, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)
	return scanJob(row)
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, vod_id, clip_count, clip_length, status, error, duration_ms, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE status = ?`, status).Scan(&n)
	return n, err
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.VODID, &j.ClipCount, &j.ClipLength, &j.Status, &errMsg, &j.DurationMs, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func scanJobRows(rows *sql.Rows) (*Job, error) {
	var j Job
	var errMsg sql.NullString
	var createdAt, updatedAt string

	if err := rows.Scan(&j.ID, &j.VODID, &j.ClipCount, &j.ClipLength, &j.Status, &errMsg, &j.DurationMs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
