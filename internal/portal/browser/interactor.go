package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/example/court-scheduler/internal/portal"
)

// Interactor drives a live Session. It implements portal.Driver.
type Interactor struct {
	sess *Session
	log  *zap.Logger
}

func NewInteractor(s *Session, log *zap.Logger) *Interactor {
	return &Interactor{sess: s, log: log.Named("interactor")}
}

func (i *Interactor) Navigate(ctx context.Context, url string) error {
	err := i.sess.run(ctx, navigateTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (i *Interactor) Location(ctx context.Context) (string, error) {
	var loc string
	if err := i.sess.run(ctx, i.sess.opTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Resolve tries each candidate with its own bounded presence wait and
// returns the first one that shows up in the DOM.
func (i *Interactor) Resolve(ctx context.Context, t portal.Target, wait time.Duration) (portal.Selector, error) {
	for _, cand := range t.Candidates {
		if err := ctx.Err(); err != nil {
			return portal.Selector{}, err
		}
		err := i.sess.run(ctx, wait, chromedp.WaitReady(cand.Query, queryOption(cand)))
		if err == nil {
			i.log.Debug("target resolved",
				zap.String("target", t.Name),
				zap.String("by", cand.By.String()),
				zap.String("query", cand.Query))
			return cand, nil
		}
		if i.sess.ctx.Err() != nil {
			return portal.Selector{}, fmt.Errorf("session lost while resolving %s: %w", t.Name, i.sess.ctx.Err())
		}
		i.log.Debug("candidate missed",
			zap.String("target", t.Name),
			zap.String("query", cand.Query),
			zap.Error(err))
	}
	return portal.Selector{}, fmt.Errorf("%w: %s: exhausted %d candidates", portal.ErrElementNotFound, t.Name, len(t.Candidates))
}

// Click scrolls the element into view and clicks natively, then falls back
// to an injected click. Portal widgets regularly swallow one path or the
// other, so a click only fails after both do.
func (i *Interactor) Click(ctx context.Context, sel portal.Selector) error {
	err := i.sess.run(ctx, i.sess.opTimeout,
		chromedp.ScrollIntoView(sel.Query, queryOption(sel)),
		chromedp.WaitVisible(sel.Query, queryOption(sel)),
		chromedp.Click(sel.Query, queryOption(sel)),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	i.log.Debug("native click failed, retrying from page context",
		zap.String("query", sel.Query), zap.Error(err))
	if scriptErr := i.ClickScript(ctx, sel); scriptErr != nil {
		return fmt.Errorf("%w: %s: native: %v; script: %v", portal.ErrInteractionFailed, sel.Query, err, scriptErr)
	}
	return nil
}

// ClickScript dispatches a synthetic click from inside the page. Grid cells
// with delegated handlers respond to this when the CDP mouse event misses.
func (i *Interactor) ClickScript(ctx context.Context, sel portal.Selector) error {
	script := fmt.Sprintf(clickScript, jsonEncode(sel.Query), sel.By == portal.ByXPath)
	var clicked bool
	if err := i.sess.run(ctx, i.sess.opTimeout, evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("script click %s: %w", sel.Query, err)
	}
	if !clicked {
		return fmt.Errorf("%w: script click matched nothing for %s", portal.ErrInteractionFailed, sel.Query)
	}
	return nil
}

// Type clears the field from page context, then sends real keystrokes so
// the portal's key listeners fire.
func (i *Interactor) Type(ctx context.Context, sel portal.Selector, text string) error {
	clear := fmt.Sprintf(clearScript, jsonEncode(sel.Query), sel.By == portal.ByXPath)
	var cleared bool
	err := i.sess.run(ctx, i.sess.opTimeout,
		chromedp.ScrollIntoView(sel.Query, queryOption(sel)),
		chromedp.WaitVisible(sel.Query, queryOption(sel)),
		evaluate(clear, &cleared),
	)
	if err != nil {
		return fmt.Errorf("prepare %s for input: %w", sel.Query, err)
	}
	if !cleared {
		return fmt.Errorf("%w: could not clear %s before typing", portal.ErrInteractionFailed, sel.Query)
	}
	if err := i.sess.run(ctx, i.sess.opTimeout, chromedp.SendKeys(sel.Query, text, queryOption(sel))); err != nil {
		return fmt.Errorf("type into %s: %w", sel.Query, err)
	}
	return nil
}

func (i *Interactor) PressEnter(ctx context.Context, sel portal.Selector) error {
	if err := i.sess.run(ctx, i.sess.opTimeout, chromedp.SendKeys(sel.Query, kb.Enter, queryOption(sel))); err != nil {
		return fmt.Errorf("press enter on %s: %w", sel.Query, err)
	}
	return nil
}

// VisibleText probes an indicator without waiting. Absent elements are the
// normal case during outcome scans, so a miss is not an error.
func (i *Interactor) VisibleText(ctx context.Context, sel portal.Selector) (string, bool, error) {
	script := fmt.Sprintf(visibleTextScript, jsonEncode(sel.Query), sel.By == portal.ByXPath)
	var probe struct {
		Found   bool   `json:"found"`
		Visible bool   `json:"visible"`
		Text    string `json:"text"`
	}
	if err := i.sess.run(ctx, i.sess.opTimeout, evaluate(script, &probe)); err != nil {
		return "", false, fmt.Errorf("probe %s: %w", sel.Query, err)
	}
	if !probe.Found || !probe.Visible {
		return "", false, nil
	}
	return strings.TrimSpace(probe.Text), true, nil
}

const clickScript = `(function(q, isXPath) {
	const el = isXPath
		? document.evaluate(q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue
		: document.querySelector(q);
	if (!el) { return false; }
	el.scrollIntoView({block: 'center', inline: 'center'});
	el.click();
	return true;
})(%s, %t)`

const clearScript = `(function(q, isXPath) {
	const el = isXPath
		? document.evaluate(q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue
		: document.querySelector(q);
	if (!el || el.disabled || el.readOnly) { return false; }
	el.focus();
	el.value = '';
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
})(%s, %t)`

const visibleTextScript = `(function(q, isXPath) {
	const el = isXPath
		? document.evaluate(q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue
		: document.querySelector(q);
	if (!el) { return {found: false, visible: false, text: ''}; }
	const style = window.getComputedStyle(el);
	const visible = style.display !== 'none' && style.visibility !== 'hidden' && el.getClientRects().length > 0;
	return {found: true, visible: visible, text: el.textContent || ''};
})(%s, %t)`

func queryOption(sel portal.Selector) chromedp.QueryOption {
	if sel.By == portal.ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func evaluate(script string, out any) chromedp.Action {
	return chromedp.Evaluate(script, out, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithSilent(true)
	})
}

func jsonEncode(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
