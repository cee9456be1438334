package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/migrate"
	"github.com/example/court-scheduler/internal/requests"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage booking requests",
	}
	cmd.AddCommand(newRequestCreateCmd())
	cmd.AddCommand(newRequestListCmd())
	cmd.AddCommand(newRequestCancelCmd())
	cmd.AddCommand(newRequestShowCmd())
	return cmd
}

func newRequestCreateCmd() *cobra.Command {
	var (
		user     string
		chat     string
		dateStr  string
		timeStr  string
		court    string
		duration int
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Queue a booking request",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			date, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}
			if chat == "" {
				chat = user
			}
			req := requests.Request{
				UserID:          user,
				ChatID:          chat,
				Date:            date,
				Time:            timeStr,
				CourtPreference: court,
				DurationMinutes: duration,
			}
			if err := req.Validate(); err != nil {
				return err
			}

			id, err := requests.NewRepo(d).Create(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created request id=%d date=%s time=%s\n", id, req.DateString(), req.Time)
			return nil
		},
	}

	c.Flags().StringVar(&user, "user", "", "requester id")
	c.Flags().StringVar(&chat, "chat", "", "notification chat id (defaults to --user)")
	c.Flags().StringVar(&dateStr, "date", "", "target date YYYY-MM-DD")
	c.Flags().StringVar(&timeStr, "time", "", "target time HH:MM, 24-hour")
	c.Flags().StringVar(&court, "court", "", "optional court preference")
	c.Flags().IntVar(&duration, "duration", 90, "duration minutes")

	_ = c.MarkFlagRequired("user")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("time")
	return c
}

func newRequestListCmd() *cobra.Command {
	var (
		user  string
		limit int
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List booking requests (all recent, or one requester's)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			repo := requests.NewRepo(d)
			var rs []requests.Request
			if user != "" {
				rs, err = repo.ListForUser(ctx, user)
			} else {
				rs, err = repo.ListRecent(ctx, limit)
			}
			if err != nil {
				return err
			}
			for _, rq := range rs {
				msg := ""
				if rq.ResultMessage != nil {
					msg = *rq.ResultMessage
				}
				fmt.Fprintf(os.Stdout, "id=%d date=%s time=%s court=%q duration=%d status=%s result=%q\n",
					rq.ID, rq.DateString(), rq.Time, rq.CourtPreference, rq.DurationMinutes, rq.Status, msg)
			}
			return nil
		},
	}

	c.Flags().StringVar(&user, "user", "", "only this requester's requests")
	c.Flags().IntVar(&limit, "limit", 50, "max rows without --user")
	return c
}

func newRequestCancelCmd() *cobra.Command {
	var (
		id   int64
		user string
	)

	c := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a pending request (owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			ok, err := requests.NewRepo(d).Cancel(ctx, id, user)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("request %d was not cancelled (not pending, or not owned by %q)", id, user)
			}
			fmt.Fprintf(os.Stdout, "cancelled request %d\n", id)
			return nil
		},
	}

	c.Flags().Int64Var(&id, "id", 0, "request id")
	c.Flags().StringVar(&user, "user", "", "requester id that owns the request")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("user")
	return c
}

func newRequestShowCmd() *cobra.Command {
	var id int64

	c := &cobra.Command{
		Use:   "show",
		Short: "Show one request with its audit fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			rq, err := requests.NewRepo(d).Get(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "id=%d\nrequester=%s\nchat=%s\ndate=%s\ntime=%s\ncourt=%q\nduration=%d\nstatus=%s\ncreated=%s\n",
				rq.ID, rq.UserID, rq.ChatID, rq.DateString(), rq.Time, rq.CourtPreference, rq.DurationMinutes,
				rq.Status, rq.CreatedAt.Format(time.RFC3339))
			if rq.ProcessedAt != nil {
				fmt.Fprintf(os.Stdout, "processed=%s\n", rq.ProcessedAt.Format(time.RFC3339))
			}
			if rq.ResultMessage != nil {
				fmt.Fprintf(os.Stdout, "result=%q\n", *rq.ResultMessage)
			}
			return nil
		},
	}

	c.Flags().Int64Var(&id, "id", 0, "request id")
	_ = c.MarkFlagRequired("id")
	return c
}
