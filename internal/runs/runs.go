// Package runs records one audit row per executed batch.
package runs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/court-scheduler/internal/db"
)

type Run struct {
	ID         uuid.UUID
	Date       time.Time
	Fetched    int
	Completed  int
	Failed     int
	Note       string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Record(ctx context.Context, run Run) error {
	return r.db.Exec(ctx, `
INSERT INTO batch_runs(id, eligible_date, fetched, completed, failed, note, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		run.ID, run.Date, run.Fetched, run.Completed, run.Failed, run.Note, run.StartedAt, run.FinishedAt)
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, eligible_date, fetched, completed, failed, note, started_at, finished_at
FROM batch_runs
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Date, &run.Fetched, &run.Completed, &run.Failed,
			&run.Note, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
