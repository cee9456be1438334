// Package scheduler runs the daily booking batch: it waits for the trigger
// time, pulls the requests whose date just opened for booking, and drives
// them through one shared portal session.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/court-scheduler/internal/notify"
	"github.com/example/court-scheduler/internal/portal"
	"github.com/example/court-scheduler/internal/requests"
	"github.com/example/court-scheduler/internal/runs"
)

// loginFailedMessage is stored and broadcast verbatim when the batch cannot
// get an authenticated session.
const loginFailedMessage = "Failed to login to booking website"

// Queue is the slice of the request store the scheduler needs.
type Queue interface {
	PendingForDate(ctx context.Context, date time.Time) ([]requests.Request, error)
	Get(ctx context.Context, id int64) (requests.Request, error)
	Resolve(ctx context.Context, id int64, status requests.Status, message string) (bool, error)
}

// Booker drives one authenticated portal session for the length of a batch.
type Booker interface {
	Login(ctx context.Context) error
	Book(ctx context.Context, spec portal.BookingSpec) portal.Outcome
	Close()
}

// BookerFactory opens a fresh browser session and engine for one batch run.
type BookerFactory func(ctx context.Context) (Booker, error)

// RunLog records batch audit rows. Nil disables recording.
type RunLog interface {
	Record(ctx context.Context, run runs.Run) error
}

type Scheduler struct {
	Queue     Queue
	Sink      notify.Sink
	NewBooker BookerFactory
	RunLog    RunLog

	// RunAt is the daily wall-clock trigger, "15:04" form.
	RunAt string
	// LeadDays is how many days ahead the portal opens bookings.
	LeadDays int
	// Poll is how often the loop checks whether the trigger has arrived.
	Poll time.Duration
	// Pause separates consecutive booking attempts.
	Pause time.Duration

	log        *zap.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration)
	lastRunDay string
}

func New(q Queue, sink notify.Sink, nb BookerFactory, rl RunLog, log *zap.Logger) *Scheduler {
	return &Scheduler{
		Queue:     q,
		Sink:      sink,
		NewBooker: nb,
		RunLog:    rl,
		RunAt:     "07:00",
		LeadDays:  2,
		Poll:      time.Minute,
		Pause:     2 * time.Second,
		log:       log.Named("scheduler"),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Run polls until the context ends. At most one batch fires per calendar
// day; a process started after the trigger time catches up immediately so
// that day's requests are not stranded.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, _, err := parseClock(s.RunAt); err != nil {
		return fmt.Errorf("invalid run time %q: %w", s.RunAt, err)
	}
	s.log.Info("scheduler started",
		zap.String("run_at", s.RunAt),
		zap.Int("lead_days", s.LeadDays),
		zap.Duration("poll", s.Poll))

	t := time.NewTicker(s.Poll)
	defer t.Stop()
	for {
		s.maybeRun(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Scheduler) maybeRun(ctx context.Context) {
	now := s.now()
	day := now.Format("2006-01-02")
	if s.lastRunDay == day {
		return
	}
	hh, mm, _ := parseClock(s.RunAt)
	trigger := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	if now.Before(trigger) {
		return
	}
	s.lastRunDay = day
	if err := s.ProcessDate(ctx, s.EligibleDate()); err != nil {
		s.log.Error("batch run failed", zap.Error(err))
	}
}

// EligibleDate is the civil date whose bookings open today.
func (s *Scheduler) EligibleDate() time.Time {
	d := s.now().AddDate(0, 0, s.LeadDays)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// ProcessDate runs one batch over every pending request for the given date.
// Requests never block each other; only a failed login aborts the batch,
// failing every fetched request with the same diagnostic.
func (s *Scheduler) ProcessDate(ctx context.Context, date time.Time) error {
	day := date.Format("2006-01-02")
	reqs, err := s.Queue.PendingForDate(ctx, date)
	if err != nil {
		return fmt.Errorf("fetch pending requests for %s: %w", day, err)
	}
	if len(reqs) == 0 {
		s.log.Info("no pending requests", zap.String("date", day))
		return nil
	}
	s.log.Info("processing batch", zap.String("date", day), zap.Int("requests", len(reqs)))

	run := runs.Run{
		ID:        uuid.New(),
		Date:      date,
		Fetched:   len(reqs),
		StartedAt: s.now(),
	}

	booker, err := s.NewBooker(ctx)
	if err != nil {
		s.log.Error("could not open portal session", zap.Error(err))
		s.broadcastFailure(ctx, reqs, loginFailedMessage)
		run.Failed = len(reqs)
		run.Note = fmt.Sprintf("session: %v", err)
		run.FinishedAt = s.now()
		s.record(ctx, run)
		return err
	}
	defer booker.Close()

	if err := booker.Login(ctx); err != nil {
		s.log.Error("portal login failed", zap.Error(err))
		s.broadcastFailure(ctx, reqs, loginFailedMessage)
		run.Failed = len(reqs)
		run.Note = fmt.Sprintf("login: %v", err)
		run.FinishedAt = s.now()
		s.record(ctx, run)
		return err
	}

	for i, req := range reqs {
		if ctx.Err() != nil {
			run.Note = "interrupted"
			break
		}
		switch s.processOne(ctx, booker, req) {
		case requests.StatusCompleted:
			run.Completed++
		case requests.StatusFailed:
			run.Failed++
		}
		if i < len(reqs)-1 {
			s.sleep(ctx, s.Pause)
		}
	}

	run.FinishedAt = s.now()
	s.record(ctx, run)
	s.log.Info("batch finished",
		zap.String("date", day),
		zap.Int("completed", run.Completed),
		zap.Int("failed", run.Failed),
		zap.Int("fetched", run.Fetched))
	return nil
}

// processOne drives a single request to a terminal status and tells the
// requester. Returns the status it applied, or "" when the request was
// skipped because it stopped being pending after the fetch.
func (s *Scheduler) processOne(ctx context.Context, b Booker, req requests.Request) requests.Status {
	cur, err := s.Queue.Get(ctx, req.ID)
	if err != nil {
		s.log.Error("status re-check failed, proceeding with fetched snapshot",
			zap.Int64("id", req.ID), zap.Error(err))
	} else if cur.Status != requests.StatusPending {
		s.log.Info("skipping request, no longer pending",
			zap.Int64("id", req.ID), zap.String("status", string(cur.Status)))
		return ""
	}

	s.log.Info("processing request",
		zap.Int64("id", req.ID),
		zap.String("date", req.DateString()),
		zap.String("time", req.Time))

	outcome := b.Book(ctx, portal.BookingSpec{
		Date:            req.Date,
		Time:            req.Time,
		CourtPreference: req.CourtPreference,
		DurationMinutes: req.DurationMinutes,
	})

	status := requests.StatusFailed
	emoji := "❌"
	if outcome.Success {
		status = requests.StatusCompleted
		emoji = "✅"
	}
	if _, err := s.Queue.Resolve(ctx, req.ID, status, outcome.Message); err != nil {
		s.log.Error("persist outcome failed", zap.Int64("id", req.ID), zap.Error(err))
	}
	s.notify(ctx, req.ChatID, fmt.Sprintf("%s Booking request #%d: %s", emoji, req.ID, outcome.Message))
	return status
}

func (s *Scheduler) broadcastFailure(ctx context.Context, reqs []requests.Request, msg string) {
	for _, req := range reqs {
		if _, err := s.Queue.Resolve(ctx, req.ID, requests.StatusFailed, msg); err != nil {
			s.log.Error("persist failure failed", zap.Int64("id", req.ID), zap.Error(err))
		}
		s.notify(ctx, req.ChatID, fmt.Sprintf("❌ Booking request #%d failed: %s", req.ID, msg))
	}
}

// notify delivers one message. Delivery problems are logged and dropped so
// they never disturb the batch.
func (s *Scheduler) notify(ctx context.Context, chatID, text string) {
	if err := s.Sink.Send(ctx, chatID, text); err != nil {
		s.log.Error("notification failed", zap.String("chat_id", chatID), zap.Error(err))
	}
}

func (s *Scheduler) record(ctx context.Context, run runs.Run) {
	if s.RunLog == nil {
		return
	}
	if err := s.RunLog.Record(ctx, run); err != nil {
		s.log.Error("record batch run failed", zap.Error(err))
	}
}

func parseClock(v string) (int, int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
