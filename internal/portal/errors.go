package portal

import "errors"

var (
	// ErrElementNotFound means a target's candidate selectors were exhausted.
	ErrElementNotFound = errors.New("element not found")
	// ErrInteractionFailed means both the native and the script-injected
	// interaction paths failed against a resolved element.
	ErrInteractionFailed = errors.New("interaction failed")
	// ErrLoginFailed is batch-fatal: the scheduler broadcasts it to every
	// fetched request instead of attempting any of them.
	ErrLoginFailed = errors.New("login failed")
	// ErrSlotUnavailable means the grid's canonical entry cell was absent
	// for the selected date.
	ErrSlotUnavailable = errors.New("entry slot unavailable")
	// ErrFormFieldFailed means a booking-form dropdown selection failed.
	// Fatal for the time field, logged and skipped for court and duration.
	ErrFormFieldFailed = errors.New("form field selection failed")
	// ErrAmbiguousOutcome means neither a success nor a failure indicator
	// was visible after submit. Always mapped to a failed outcome.
	ErrAmbiguousOutcome = errors.New("booking outcome ambiguous")
)
