package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// maskAutomationScript runs before every document load and hides the
// webdriver marker the portal's scripts check for.
const maskAutomationScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

const (
	startTimeout     = 30 * time.Second
	navigateTimeout  = 60 * time.Second
	defaultOpTimeout = 30 * time.Second
)

// Options configures the Chrome session for one batch run.
type Options struct {
	Headless bool
	// ChromePath points at the browser binary; empty lets chromedp find one.
	ChromePath string
	// RemoteURL attaches to an already running browser over CDP instead of
	// launching one.
	RemoteURL string
}

// Session owns the browser for one batch run: the allocator and tab contexts
// plus their cancel functions. One Session serves every request of the run
// and is closed unconditionally at its end.
type Session struct {
	ctx       context.Context
	cancelTab context.CancelFunc
	cancelAll context.CancelFunc
	log       *zap.Logger
	opTimeout time.Duration
}

func NewSession(parent context.Context, opts Options, log *zap.Logger) (*Session, error) {
	var (
		allocCtx  context.Context
		cancelAll context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, cancelAll = chromedp.NewRemoteAllocator(parent, opts.RemoteURL)
	} else {
		flags := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		if opts.ChromePath != "" {
			flags = append(flags, chromedp.ExecPath(opts.ChromePath))
		}
		allocCtx, cancelAll = chromedp.NewExecAllocator(parent, flags...)
	}

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:       tabCtx,
		cancelTab: cancelTab,
		cancelAll: cancelAll,
		log:       log.Named("browser"),
		opTimeout: defaultOpTimeout,
	}

	// Start the browser right away so a broken environment fails the batch
	// before any request is pulled, and install the automation mask.
	startCtx, cancel := context.WithTimeout(tabCtx, startTimeout)
	defer cancel()
	err := chromedp.Run(startCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(maskAutomationScript).Do(ctx)
		return err
	}))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	s.log.Info("browser session started", zap.Bool("headless", opts.Headless), zap.Bool("remote", opts.RemoteURL != ""))
	return s, nil
}

// Close tears down the tab and the browser. Safe on every exit path.
func (s *Session) Close() {
	s.cancelTab()
	s.cancelAll()
	s.log.Info("browser session closed")
}

// run executes chromedp actions bounded by the given timeout. The caller
// context gates entry; cancellation of the batch context tears the whole
// session down through the allocator parent.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}
