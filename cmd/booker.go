package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/court-scheduler/internal/config"
	"github.com/example/court-scheduler/internal/db"
	"github.com/example/court-scheduler/internal/portal"
	"github.com/example/court-scheduler/internal/portal/browser"
	"github.com/example/court-scheduler/internal/scheduler"
	"github.com/example/court-scheduler/internal/settings"
)

// resolveCredentials picks the portal account: environment first, stored
// credentials second.
func resolveCredentials(ctx context.Context, cfg config.Config, st *settings.Store) (portal.Config, error) {
	if cfg.IsConfigured() {
		return portal.Config{
			BaseURL:  cfg.PortalURL,
			Username: cfg.PortalUsername,
			Password: cfg.PortalPassword,
		}, nil
	}
	if st == nil {
		return portal.Config{}, fmt.Errorf("portal credentials not configured: set PORTAL_URL, PORTAL_USERNAME and PORTAL_PASSWORD")
	}
	pc, err := st.Portal(ctx)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return portal.Config{}, fmt.Errorf("portal credentials not configured: set PORTAL_* variables or run `courtsched portal set-credentials`")
		}
		return portal.Config{}, err
	}
	if pc.URL == "" || pc.Username == "" || pc.Password == "" {
		return portal.Config{}, fmt.Errorf("stored portal credentials are incomplete")
	}
	return portal.Config{BaseURL: pc.URL, Username: pc.Username, Password: pc.Password}, nil
}

// newBookerFactory builds the scheduler's session factory: credentials are
// re-resolved and a fresh browser is launched for every batch.
func newBookerFactory(cfg config.Config, st *settings.Store, log *zap.Logger) scheduler.BookerFactory {
	return func(ctx context.Context) (scheduler.Booker, error) {
		creds, err := resolveCredentials(ctx, cfg, st)
		if err != nil {
			return nil, err
		}
		sess, err := browser.NewSession(ctx, browser.Options{
			Headless:   cfg.Headless,
			ChromePath: cfg.ChromePath,
			RemoteURL:  cfg.RemoteURL,
		}, log)
		if err != nil {
			return nil, err
		}
		eng := portal.NewEngine(browser.NewInteractor(sess, log), creds, log)
		return &portalBooker{eng: eng, sess: sess}, nil
	}
}

// portalBooker pairs an engine with the session it drives so the scheduler
// can close both as one.
type portalBooker struct {
	eng  *portal.Engine
	sess *browser.Session
}

func (b *portalBooker) Login(ctx context.Context) error { return b.eng.Login(ctx) }

func (b *portalBooker) Book(ctx context.Context, spec portal.BookingSpec) portal.Outcome {
	return b.eng.Book(ctx, spec)
}

func (b *portalBooker) Close() { b.sess.Close() }
