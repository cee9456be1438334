package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/court-scheduler/internal/auth"
	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/crypto"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/migrate"
	"github.com/example/court-scheduler/internal/notify"
	"github.com/example/court-scheduler/internal/requests"
	"github.com/example/court-scheduler/internal/runs"
	"github.com/example/court-scheduler/internal/scheduler"
	"github.com/example/court-scheduler/internal/settings"
	"github.com/example/court-scheduler/internal/web"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web console + booking scheduler",
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

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			aead, err := crypto.New(cfg.CredEncKey)
			if err != nil {
				return fmt.Errorf("CRED_ENC_KEY: %w", err)
			}

			authStore := auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
			requestRepo := requests.NewRepo(d)
			runRepo := runs.NewRepo(d)
			settingStore := settings.NewStore(d, aead)

			var sink notify.Sink
			if cfg.TelegramToken != "" {
				sink = notify.NewTelegram(cfg.TelegramToken)
			} else {
				log.Info("TELEGRAM_BOT_TOKEN not set, notifications go to the log")
				sink = notify.NewLogSink(log)
			}

			if !cfg.IsConfigured() {
				if _, err := settingStore.Portal(ctx); err != nil {
					log.Warn("portal credentials not configured; batches will fail until they are set")
				}
			}

			sched := scheduler.New(requestRepo, sink, newBookerFactory(cfg, settingStore, log), runRepo, log)
			sched.RunAt = cfg.RunAt
			sched.LeadDays = cfg.LeadDays
			sched.Poll = cfg.Poll
			sched.Pause = cfg.Pause
			go func() {
				if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("scheduler stopped", zap.Error(err))
				}
			}()

			ws := &web.Server{
				Auth:     authStore,
				Requests: requestRepo,
				Runs:     runRepo,
				Settings: settingStore,
				EnvCreds: cfg.IsConfigured(),
				BaseURL:  cfg.BaseURL,
				Log:      log.Named("web"),
			}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes(), log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}
