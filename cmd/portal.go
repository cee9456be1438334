package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/crypto"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/migrate"
	"github.com/example/court-scheduler/internal/portal"
	"github.com/example/court-scheduler/internal/portal/browser"
	"github.com/example/court-scheduler/internal/settings"
)

func newPortalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Manage the booking portal account",
	}
	cmd.AddCommand(newPortalCheckCmd())
	cmd.AddCommand(newPortalSetCredentialsCmd())
	return cmd
}

func newPortalCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Open a browser session and verify the portal login",
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

			var st *settings.Store
			if !cfg.IsConfigured() {
				d, err := db.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer d.Close()
				aead, err := crypto.New(cfg.CredEncKey)
				if err != nil {
					return fmt.Errorf("CRED_ENC_KEY: %w", err)
				}
				st = settings.NewStore(d, aead)
			}
			creds, err := resolveCredentials(ctx, cfg, st)
			if err != nil {
				return err
			}

			sess, err := browser.NewSession(ctx, browser.Options{
				Headless:   cfg.Headless,
				ChromePath: cfg.ChromePath,
				RemoteURL:  cfg.RemoteURL,
			}, log)
			if err != nil {
				return err
			}
			defer sess.Close()

			eng := portal.NewEngine(browser.NewInteractor(sess, log), creds, log)
			if err := eng.Login(ctx); err != nil {
				return fmt.Errorf("login check failed: %w", err)
			}
			fmt.Fprintln(os.Stdout, "login ok")
			return nil
		},
	}
}

func newPortalSetCredentialsCmd() *cobra.Command {
	var (
		url      string
		username string
		password string
	)

	c := &cobra.Command{
		Use:   "set-credentials",
		Short: "Store the portal account (password encrypted at rest)",
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

			aead, err := crypto.New(cfg.CredEncKey)
			if err != nil {
				return fmt.Errorf("CRED_ENC_KEY: %w", err)
			}
			st := settings.NewStore(d, aead)
			err = st.SavePortal(ctx, settings.PortalCredentials{
				URL:      url,
				Username: username,
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "stored portal credentials for %q\n", username)
			return nil
		},
	}

	c.Flags().StringVar(&url, "url", "", "booking site URL")
	c.Flags().StringVar(&username, "username", "", "portal username")
	c.Flags().StringVar(&password, "password", "", "portal password")
	_ = c.MarkFlagRequired("url")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}
