package portal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config carries what the engine needs to reach and enter the portal.
type Config struct {
	BaseURL  string
	Username string
	Password string
}

// Engine drives booking attempts through one live authenticated session.
// It is not safe for concurrent use: the portal's server-side session state
// cannot tolerate interleaved interactions, so callers run requests strictly
// one after another.
type Engine struct {
	drv   Driver
	cfg   Config
	log   *zap.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// BookingSpec is the per-request input to one attempt.
type BookingSpec struct {
	Date            time.Time
	Time            string
	CourtPreference string
	DurationMinutes int
}

func NewEngine(drv Driver, cfg Config, log *zap.Logger) *Engine {
	return &Engine{
		drv:   drv,
		cfg:   cfg,
		log:   log.Named("engine"),
		sleep: sleepCtx,
	}
}

// Resolution waits poll the DOM; the settle constants below cover the spots
// where the portal gives no signal to poll for and a fixed pause is the only
// option.
const (
	loginFieldWait = 10 * time.Second
	formWait       = 15 * time.Second
	dropdownWait   = 10 * time.Second
	probeWait      = time.Second
)

const (
	settleLoginPage   = 2 * time.Second
	settleLoginSubmit = 3 * time.Second
	settleBookingPage = 3 * time.Second
	settleScroll      = time.Second
	settleGridRefresh = 4 * time.Second
	settleFormRender  = 5 * time.Second
	settleField       = time.Second
	settleOverlay     = 500 * time.Millisecond
	settleKeystroke   = 500 * time.Millisecond
	settleSubmitted   = 2 * time.Second
)

// Login authenticates the session. It runs once per batch, not per request;
// every error wraps ErrLoginFailed and the caller treats it as fatal for the
// entire run.
func (e *Engine) Login(ctx context.Context) error {
	if err := e.drv.Navigate(ctx, e.cfg.BaseURL); err != nil {
		return fmt.Errorf("%w: open portal: %v", ErrLoginFailed, err)
	}
	if err := e.sleep(ctx, settleLoginPage); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	user, err := e.drv.Resolve(ctx, UsernameField(), loginFieldWait)
	if err != nil {
		return fmt.Errorf("%w: could not find username field: %v", ErrLoginFailed, err)
	}
	pass, err := e.drv.Resolve(ctx, PasswordField(), loginFieldWait)
	if err != nil {
		return fmt.Errorf("%w: could not find password field: %v", ErrLoginFailed, err)
	}

	if err := e.drv.Type(ctx, user, e.cfg.Username); err != nil {
		return fmt.Errorf("%w: enter username: %v", ErrLoginFailed, err)
	}
	if err := e.sleep(ctx, settleKeystroke); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if err := e.drv.Type(ctx, pass, e.cfg.Password); err != nil {
		return fmt.Errorf("%w: enter password: %v", ErrLoginFailed, err)
	}
	if err := e.sleep(ctx, settleKeystroke); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	if submit, rerr := e.drv.Resolve(ctx, LoginSubmit(), probeWait); rerr == nil {
		if err := e.drv.Click(ctx, submit); err != nil {
			return fmt.Errorf("%w: click submit: %v", ErrLoginFailed, err)
		}
	} else {
		// No recognizable submit control; Enter on the password field.
		if err := e.drv.PressEnter(ctx, pass); err != nil {
			return fmt.Errorf("%w: submit credentials: %v", ErrLoginFailed, err)
		}
	}

	if err := e.sleep(ctx, settleLoginSubmit); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	loc, err := e.drv.Location(ctx)
	if err != nil {
		return fmt.Errorf("%w: read location: %v", ErrLoginFailed, err)
	}
	// Success is inferred from having left the login page; the portal gives
	// no positive confirmation. A failed login that redirects somewhere else
	// would be misread here (known gap).
	if strings.Contains(strings.ToLower(loc), "login") {
		return fmt.Errorf("%w: still on login page", ErrLoginFailed)
	}
	e.log.Info("login successful", zap.String("location", loc))
	return nil
}

// Book runs the full attempt for one request against the authenticated
// session and always produces an outcome; nothing it hits aborts the batch.
// The sequence is linear with no backward edges: date, entry cell, form
// dropdowns, submit, indicator scan.
func (e *Engine) Book(ctx context.Context, spec BookingSpec) Outcome {
	log := e.log.With(zap.String("date", spec.Date.Format("2006-01-02")), zap.String("time", spec.Time))

	if err := e.drv.Navigate(ctx, e.cfg.BaseURL); err != nil {
		return failure("Booking error: %v", err)
	}
	if err := e.sleep(ctx, settleBookingPage); err != nil {
		return failure("Booking error: %v", err)
	}

	day, month, abbrev := GridDate(spec.Date)

	// Date selection. The grid refresh afterwards is AJAX with no readiness
	// signal, so a fixed settle follows the click.
	dateCell, err := e.drv.Resolve(ctx, DateCell(day, month, abbrev), formWait)
	if err != nil {
		return failure("Booking error: date %s %s not present in the picker: %v", day, month, err)
	}
	if err := e.sleep(ctx, settleScroll); err != nil {
		return failure("Booking error: %v", err)
	}
	if err := e.drv.ClickScript(ctx, dateCell); err != nil {
		return failure("Booking error: select date: %v", err)
	}
	log.Info("selected date", zap.String("day", day), zap.String("month", month))
	if err := e.sleep(ctx, settleGridRefresh); err != nil {
		return failure("Booking error: %v", err)
	}

	// The canonical opening cell. Its absence means the portal is not
	// offering the date's grid at all.
	entry, err := e.drv.Resolve(ctx, EntryCell(), formWait)
	if err != nil {
		log.Warn("entry cell missing", zap.Error(fmt.Errorf("%w: %v", ErrSlotUnavailable, err)))
		return failure("Entry slot (ID %s at %s) not found in grid.", EntryAreaID, EntryTimeLabel)
	}
	if err := e.sleep(ctx, settleScroll); err != nil {
		return failure("Booking error: %v", err)
	}
	if err := e.drv.Click(ctx, entry); err != nil {
		log.Error("entry cell click failed", zap.Error(err))
		return failure("Found entry slot but could not trigger the click event.")
	}
	log.Info("opened reservation form")
	if err := e.sleep(ctx, settleFormRender); err != nil {
		return failure("Booking error: %v", err)
	}

	// Form dropdowns. Court and duration tolerate failure and keep whatever
	// the form defaulted to; time is the reservation and does not.
	if spec.CourtPreference != "" {
		if err := e.selectDropdown(ctx, CourtLabelID, spec.CourtPreference); err != nil {
			log.Warn("court selection failed, keeping form default",
				zap.String("court", spec.CourtPreference), zap.Error(err))
		}
		if err := e.sleep(ctx, settleField); err != nil {
			return failure("Booking error: %v", err)
		}
	}

	formatted := TwelveHour(spec.Time)
	if err := e.selectDropdown(ctx, TimeLabelID, formatted); err != nil {
		log.Warn("time selection failed", zap.String("time", formatted), zap.Error(err))
		return failure("Could not select time %s in form dropdown.", formatted)
	}
	if err := e.sleep(ctx, settleField); err != nil {
		return failure("Booking error: %v", err)
	}

	if err := e.selectDropdown(ctx, DurationLabelID, strconv.Itoa(spec.DurationMinutes)); err != nil {
		log.Warn("duration selection failed, keeping form default",
			zap.Int("minutes", spec.DurationMinutes), zap.Error(err))
	}
	if err := e.sleep(ctx, settleField); err != nil {
		return failure("Booking error: %v", err)
	}

	if !e.submitForm(ctx) {
		return failure("Could not find or click submit button")
	}
	if err := e.sleep(ctx, settleSubmitted); err != nil {
		return failure("Booking error: %v", err)
	}

	return e.detectOutcome(ctx, spec, log)
}

// selectDropdown runs the selectonemenu protocol: open the overlay via its
// label, match the option row by data-label or text, click it.
func (e *Engine) selectDropdown(ctx context.Context, labelID, option string) error {
	label, err := e.drv.Resolve(ctx, DropdownLabel(labelID), dropdownWait)
	if err != nil {
		return fmt.Errorf("%w: label %s: %v", ErrFormFieldFailed, labelID, err)
	}
	if err := e.drv.Click(ctx, label); err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrFormFieldFailed, labelID, err)
	}
	if err := e.sleep(ctx, settleOverlay); err != nil {
		return fmt.Errorf("%w: %v", ErrFormFieldFailed, err)
	}
	opt, err := e.drv.Resolve(ctx, DropdownOption(option), dropdownWait)
	if err != nil {
		return fmt.Errorf("%w: option %q under %s: %v", ErrFormFieldFailed, option, labelID, err)
	}
	if err := e.drv.Click(ctx, opt); err != nil {
		return fmt.Errorf("%w: choose %q: %v", ErrFormFieldFailed, option, err)
	}
	if err := e.sleep(ctx, settleOverlay); err != nil {
		return fmt.Errorf("%w: %v", ErrFormFieldFailed, err)
	}
	return nil
}

// submitForm walks the save-control ladder. A rung that resolves but will
// not click is abandoned for the next, so one dead specific control does not
// block the generic fallbacks behind it.
func (e *Engine) submitForm(ctx context.Context) bool {
	for _, sel := range SubmitLadder() {
		rung := Target{Name: "submit control", Candidates: []Selector{sel}}
		resolved, err := e.drv.Resolve(ctx, rung, formWait)
		if err != nil {
			continue
		}
		if err := e.sleep(ctx, settleKeystroke); err != nil {
			return false
		}
		if err := e.drv.Click(ctx, resolved); err != nil {
			e.log.Debug("submit rung failed", zap.String("selector", sel.Query), zap.Error(err))
			continue
		}
		e.log.Info("submitted booking form", zap.String("selector", sel.Query))
		return true
	}
	return false
}

// detectOutcome scans success indicators then failure indicators and takes
// the first visible match. Nothing visible from either list resolves to
// failure, never success.
func (e *Engine) detectOutcome(ctx context.Context, spec BookingSpec, log *zap.Logger) Outcome {
	for _, sel := range SuccessIndicators() {
		text, visible, err := e.drv.VisibleText(ctx, sel)
		if err != nil || !visible {
			continue
		}
		log.Info("booking confirmed", zap.String("indicator", sel.Query))
		return Outcome{
			Success: true,
			Message: fmt.Sprintf("Booking confirmed for %s at %s: %s", spec.Date.Format("2006-01-02"), spec.Time, text),
		}
	}
	for _, sel := range FailureIndicators() {
		text, visible, err := e.drv.VisibleText(ctx, sel)
		if err != nil || !visible {
			continue
		}
		log.Warn("booking rejected", zap.String("indicator", sel.Query), zap.String("text", text))
		return failure("Booking failed: %s", text)
	}
	log.Warn("no outcome indicator visible", zap.Error(ErrAmbiguousOutcome))
	return failure("Could not determine booking status - no clear success or error message found. Please verify manually.")
}

func failure(format string, args ...any) Outcome {
	return Outcome{Message: fmt.Sprintf(format, args...)}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
