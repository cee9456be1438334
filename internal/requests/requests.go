package requests

import (
	"context"
	"fmt"
	"time"

	"github.com/example/court-scheduler/internal/db"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a request in this status can never transition again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Request is one queued booking attempt. Date is a civil date (the portal
// has no timezone notion); Time is the requested start in 24-hour HH:MM.
type Request struct {
	ID              int64
	UserID          string
	ChatID          string
	Date            time.Time
	Time            string
	CourtPreference string
	DurationMinutes int

	Status        Status
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	ResultMessage *string
}

// DateString renders the civil target date the way the portal and the queue
// queries expect it.
func (r Request) DateString() string {
	return r.Date.Format("2006-01-02")
}

func (r Request) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("user_id required")
	}
	if r.ChatID == "" {
		return fmt.Errorf("chat_id required")
	}
	if r.Date.IsZero() {
		return fmt.Errorf("requested_date required")
	}
	if _, err := time.Parse("15:04", r.Time); err != nil {
		return fmt.Errorf("requested_time must be HH:MM (24-hour)")
	}
	if r.DurationMinutes < 1 {
		return fmt.Errorf("duration_minutes must be >= 1")
	}
	return nil
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const requestColumns = `id,user_id,chat_id,requested_date,requested_time,court_preference,duration_minutes,status,created_at,processed_at,result_message`

func (r *Repo) Create(ctx context.Context, req Request) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
INSERT INTO requests(user_id,chat_id,requested_date,requested_time,court_preference,duration_minutes,status)
VALUES ($1,$2,$3,$4,$5,$6,'pending')
RETURNING id`,
		req.UserID, req.ChatID, req.Date, req.Time, nullIfEmpty(req.CourtPreference), req.DurationMinutes,
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

// PendingForDate returns the pending requests targeting one civil date, in
// insertion order. This is the batch fetch; everything it returns will be
// driven to a terminal status by the run.
func (r *Repo) PendingForDate(ctx context.Context, date time.Time) ([]Request, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+requestColumns+`
FROM requests
WHERE status='pending' AND requested_date=$1::date
ORDER BY created_at ASC, id ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *Repo) ListForUser(ctx context.Context, userID string) ([]Request, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+requestColumns+`
FROM requests
WHERE user_id=$1
ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

// ListRecent returns the newest requests regardless of owner, for the
// operator console.
func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Request, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+requestColumns+`
FROM requests
ORDER BY created_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *Repo) Get(ctx context.Context, id int64) (Request, error) {
	row := r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=$1`, id)
	req, err := scanRequest(row)
	if err != nil {
		return Request{}, db.WrapNotFound(err)
	}
	return req, nil
}

// Resolve moves a pending request to completed or failed. The status guard
// keeps terminal states terminal: a request cancelled after the batch fetch
// stays cancelled, so the update is reported back as false.
func (r *Repo) Resolve(ctx context.Context, id int64, status Status, message string) (bool, error) {
	if status != StatusCompleted && status != StatusFailed {
		return false, fmt.Errorf("resolve: status must be completed or failed, got %q", status)
	}
	n, err := r.db.ExecRows(ctx, `
UPDATE requests
SET status=$2, processed_at=now(), result_message=$3
WHERE id=$1 AND status='pending'`, id, status, message)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cancel succeeds only while the request is still pending and only for its
// owner. Cancelling twice, or someone else's request, reports false.
func (r *Repo) Cancel(ctx context.Context, id int64, userID string) (bool, error) {
	n, err := r.db.ExecRows(ctx, `
UPDATE requests
SET status='cancelled', processed_at=now()
WHERE id=$1 AND user_id=$2 AND status='pending'`, id, userID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanRequests(rows db.Rows) ([]Request, error) {
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row db.Row) (Request, error) {
	var req Request
	var court *string
	if err := row.Scan(
		&req.ID, &req.UserID, &req.ChatID, &req.Date, &req.Time, &court,
		&req.DurationMinutes, &req.Status, &req.CreatedAt, &req.ProcessedAt, &req.ResultMessage,
	); err != nil {
		return Request{}, err
	}
	if court != nil {
		req.CourtPreference = *court
	}
	return req, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
