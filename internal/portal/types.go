package portal

import (
	"context"
	"time"
)

// By names the lookup mechanism of a Selector.
type By int

const (
	ByCSS By = iota
	ByXPath
)

func (b By) String() string {
	if b == ByXPath {
		return "xpath"
	}
	return "css"
}

// Selector is one concrete lookup for a UI target.
type Selector struct {
	By    By
	Query string
}

// Target is a logical UI element described by an ordered list of candidate
// selectors. Candidates are tried in order; the first one that resolves wins.
// The portal's markup shifts between releases, so every target the engine
// touches carries fallbacks rather than a single canonical selector.
type Target struct {
	Name       string
	Candidates []Selector
}

// Outcome is the terminal result of one booking attempt. It is ephemeral:
// the scheduler maps it onto the request's status and result message.
type Outcome struct {
	Success bool
	Message string
}

// Driver is the browser surface the engine runs against. The production
// implementation lives in portal/browser on chromedp; tests substitute a
// scripted fake.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// Resolve tries each candidate of the target with a bounded wait and
	// returns the first selector present in the DOM. Exhaustion yields an
	// error wrapping ErrElementNotFound.
	Resolve(ctx context.Context, t Target, wait time.Duration) (Selector, error)
	// Click scrolls the element into view and clicks it, falling back to a
	// script-injected click when the native path fails. Both paths failing
	// yields an error wrapping ErrInteractionFailed.
	Click(ctx context.Context, sel Selector) error
	// ClickScript performs only the script-injected click. Used where the
	// portal's own handlers swallow native events.
	ClickScript(ctx context.Context, sel Selector) error
	// Type clears the element and sends the text as key events.
	Type(ctx context.Context, sel Selector, text string) error
	// PressEnter sends an Enter keystroke to the element.
	PressEnter(ctx context.Context, sel Selector) error
	// VisibleText reports whether the element exists and is displayed, and
	// its visible text when it is. Non-existence is not an error here; the
	// outcome scan probes many indicators that are usually absent.
	VisibleText(ctx context.Context, sel Selector) (string, bool, error)
}
