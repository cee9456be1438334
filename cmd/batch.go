package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/crypto"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/migrate"
	"github.com/example/court-scheduler/internal/notify"
	"github.com/example/court-scheduler/internal/requests"
	"github.com/example/court-scheduler/internal/runs"
	"github.com/example/court-scheduler/internal/scheduler"
	"github.com/example/court-scheduler/internal/settings"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run or inspect booking batches",
	}
	cmd.AddCommand(newBatchRunCmd())
	cmd.AddCommand(newBatchHistoryCmd())
	return cmd
}

func newBatchRunCmd() *cobra.Command {
	var dateStr string

	c := &cobra.Command{
		Use:   "run",
		Short: "Process pending requests now instead of waiting for the daily trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.DevMode)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			aead, err := crypto.New(cfg.CredEncKey)
			if err != nil {
				return fmt.Errorf("CRED_ENC_KEY: %w", err)
			}
			settingStore := settings.NewStore(d, aead)

			var sink notify.Sink
			if cfg.TelegramToken != "" {
				sink = notify.NewTelegram(cfg.TelegramToken)
			} else {
				sink = notify.NewLogSink(log)
			}

			sched := scheduler.New(requests.NewRepo(d), sink, newBookerFactory(cfg, settingStore, log), runs.NewRepo(d), log)
			sched.LeadDays = cfg.LeadDays
			sched.Pause = cfg.Pause

			date := sched.EligibleDate()
			if dateStr != "" {
				date, err = time.Parse("2006-01-02", dateStr)
				if err != nil {
					return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
				}
			}
			fmt.Fprintf(os.Stdout, "processing pending requests for %s\n", date.Format("2006-01-02"))
			return sched.ProcessDate(ctx, date)
		},
	}

	c.Flags().StringVar(&dateStr, "date", "", "target date YYYY-MM-DD (default: today + lead days)")
	return c
}

func newBatchHistoryCmd() *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "history",
		Short: "List recorded batch runs",
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

			rs, err := runs.NewRepo(d).ListRecent(ctx, limit)
			if err != nil {
				return err
			}
			for _, r := range rs {
				fmt.Fprintf(os.Stdout, "%s date=%s fetched=%d completed=%d failed=%d note=%q\n",
					r.StartedAt.Format(time.RFC3339), r.Date.Format("2006-01-02"),
					r.Fetched, r.Completed, r.Failed, r.Note)
			}
			return nil
		},
	}

	c.Flags().IntVar(&limit, "limit", 20, "max rows")
	return c
}
