package requests

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/migrate"
)

func validRequest() Request {
	return Request{
		UserID:          "u-100",
		ChatID:          "c-100",
		Date:            time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Time:            "18:30",
		CourtPreference: "Outdoor Court 4",
		DurationMinutes: 90,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr string
	}{
		{"ok", func(r *Request) {}, ""},
		{"missing user", func(r *Request) { r.UserID = "" }, "user_id"},
		{"missing chat", func(r *Request) { r.ChatID = "" }, "chat_id"},
		{"zero date", func(r *Request) { r.Date = time.Time{} }, "requested_date"},
		{"bad time", func(r *Request) { r.Time = "25:99" }, "requested_time"},
		{"twelve hour time", func(r *Request) { r.Time = "06:00 PM" }, "requested_time"},
		{"zero duration", func(r *Request) { r.DurationMinutes = 0 }, "duration_minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
}

func TestDateString(t *testing.T) {
	r := validRequest()
	if got := r.DateString(); got != "2026-09-01" {
		t.Errorf("DateString() = %q, want %q", got, "2026-09-01")
	}
}

func TestResolveRejectsNonTerminalStatus(t *testing.T) {
	// The guard fires before any query runs, so no database is needed.
	repo := NewRepo(nil)
	for _, s := range []Status{StatusPending, StatusCancelled, Status("bogus")} {
		if _, err := repo.Resolve(context.Background(), 1, s, "msg"); err == nil {
			t.Errorf("Resolve accepted status %q", s)
		}
	}
}

// openTestRepo connects to the database named by TEST_DATABASE_URL, runs the
// migrations, and returns a Repo against it. Tests that need a live Postgres
// skip when the variable is unset.
func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	d, err := db.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(d.Close)
	if err := d.Ping(ctx); err != nil {
		t.Fatalf("ping test database: %v", err)
	}
	if err := migrate.Up(ctx, d); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return NewRepo(d)
}

func TestCancelOwnershipAndIdempotence(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	owner := fmt.Sprintf("tg-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_ = repo.db.Exec(context.Background(), `DELETE FROM requests WHERE user_id = $1`, owner)
	})

	mustCreate := func() int64 {
		t.Helper()
		r := validRequest()
		r.UserID = owner
		r.ChatID = owner
		id, err := repo.Create(ctx, r)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return id
	}
	mustGet := func(id int64) Request {
		t.Helper()
		r, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		return r
	}

	id := mustCreate()

	// Someone else's id does not cancel the request.
	ok, err := repo.Cancel(ctx, id, "not-the-owner")
	if err != nil || ok {
		t.Fatalf("Cancel by a non-owner = (%v, %v), want (false, nil)", ok, err)
	}
	if got := mustGet(id); got.Status != StatusPending || got.ProcessedAt != nil {
		t.Fatalf("request after refused cancel = %s (processed %v), want untouched pending", got.Status, got.ProcessedAt)
	}

	// The owner can cancel while the request is pending.
	ok, err = repo.Cancel(ctx, id, owner)
	if err != nil || !ok {
		t.Fatalf("Cancel by the owner = (%v, %v), want (true, nil)", ok, err)
	}
	got := mustGet(id)
	if got.Status != StatusCancelled {
		t.Fatalf("status after cancel = %s, want cancelled", got.Status)
	}
	if got.ProcessedAt == nil {
		t.Fatal("cancel did not set processed_at")
	}

	// Cancelling again reports failure and changes nothing.
	ok, err = repo.Cancel(ctx, id, owner)
	if err != nil || ok {
		t.Fatalf("repeated Cancel = (%v, %v), want (false, nil)", ok, err)
	}
	if got := mustGet(id); got.Status != StatusCancelled {
		t.Fatalf("status after repeated cancel = %s, want cancelled", got.Status)
	}

	// A cancelled request cannot be resolved afterwards either.
	if ok, err := repo.Resolve(ctx, id, StatusCompleted, "late result"); err != nil || ok {
		t.Fatalf("Resolve on a cancelled request = (%v, %v), want (false, nil)", ok, err)
	}
	if got := mustGet(id); got.Status != StatusCancelled {
		t.Fatalf("status after refused resolve = %s, want cancelled", got.Status)
	}

	// A request that already reached a terminal status cannot be cancelled.
	done := mustCreate()
	if ok, err := repo.Resolve(ctx, done, StatusCompleted, "Court reserved"); err != nil || !ok {
		t.Fatalf("Resolve pending = (%v, %v), want (true, nil)", ok, err)
	}
	if ok, err := repo.Cancel(ctx, done, owner); err != nil || ok {
		t.Fatalf("Cancel a completed request = (%v, %v), want (false, nil)", ok, err)
	}
	if got := mustGet(done); got.Status != StatusCompleted {
		t.Fatalf("status after refused cancel = %s, want completed", got.Status)
	}
}
