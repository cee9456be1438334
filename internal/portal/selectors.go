package portal

import (
	"fmt"
	"strings"
)

// The portal is a Liferay deployment whose booking widget is PrimeFaces.
// Component ids below were lifted from its rendered markup and are treated
// as the most-specific candidates; the generic fallbacks behind them keep
// the engine working across portal releases that regenerate ids.

const (
	usernameFieldID = "_com_liferay_login_web_portlet_LoginPortlet_login"
	passwordFieldID = "_com_liferay_login_web_portlet_LoginPortlet_password"

	// The grid's canonical opening cell: every booking starts by clicking
	// the same structurally-identified earliest slot, whatever time the
	// user actually wants.
	EntryAreaID    = "11"
	EntryTimeLabel = "06:00 AM"

	CourtLabelID    = "_activities_WAR_northstarportlet_:activityForm:j_idt1068_label"
	TimeLabelID     = "_activities_WAR_northstarportlet_:activityForm:fromTime_label"
	DurationLabelID = "_activities_WAR_northstarportlet_:activityForm:j_idt1082_label"
)

func UsernameField() Target {
	return Target{
		Name: "username field",
		Candidates: []Selector{
			{ByCSS, "#" + usernameFieldID},
			{ByCSS, "input[name*='login']"},
			{ByCSS, "input[id*='login']"},
		},
	}
}

func PasswordField() Target {
	return Target{
		Name: "password field",
		Candidates: []Selector{
			{ByCSS, "#" + passwordFieldID},
			{ByCSS, "input[type='password']"},
			{ByCSS, "#password"},
		},
	}
}

func LoginSubmit() Target {
	return Target{
		Name: "login submit",
		Candidates: []Selector{
			{ByCSS, "button[type='submit']"},
			{ByCSS, "input[type='submit']"},
			{ByXPath, "//button[contains(text(), 'Login') or contains(text(), 'Sign in')]"},
			{ByCSS, ".login-button"},
			{ByCSS, "#login-button"},
		},
	}
}

// DateCell matches the date-picker anchor whose day and month sub-spans
// equal the decomposed target date. The picker renders day and month as
// disjoint text nodes, which is why the date arrives here pre-split.
func DateCell(day, month, abbrev string) Target {
	q := fmt.Sprintf(
		"//div[contains(@class, 'horizontal-dates')]//a["+
			".//span[contains(@class, 'calendar-date') and normalize-space()=%s] and "+
			".//span[contains(@class, 'calendar-year') and (normalize-space()=%s or normalize-space()=%s)]"+
			"]",
		xpathString(day), xpathString(month), xpathString(abbrev),
	)
	return Target{Name: "date cell", Candidates: []Selector{{ByXPath, q}}}
}

// EntryCell locates the clickable ancestor of the canonical opening slot.
func EntryCell() Target {
	q := fmt.Sprintf("//div[@data-area-id=%s and @data-start-time=%s]/ancestor::td[1]",
		xpathString(EntryAreaID), xpathString(EntryTimeLabel))
	return Target{Name: "entry cell", Candidates: []Selector{{ByXPath, q}}}
}

// DropdownLabel addresses a PrimeFaces selectonemenu trigger by component
// id. XPath rather than a CSS id selector because the ids contain colons.
func DropdownLabel(id string) Target {
	return Target{
		Name:       "dropdown " + id,
		Candidates: []Selector{{ByXPath, fmt.Sprintf("//*[@id=%s]", xpathString(id))}},
	}
}

// DropdownOption matches an open overlay's option row by its data-label,
// falling back to its normalized text.
func DropdownOption(label string) Target {
	lit := xpathString(label)
	q := fmt.Sprintf(
		"//li[contains(@class, 'ui-selectonemenu-item') and (@data-label=%s or normalize-space(text())=%s)]",
		lit, lit,
	)
	return Target{Name: "option " + label, Candidates: []Selector{{ByXPath, q}}}
}

// SubmitLadder is the booking form's save control, most specific first.
// Each rung is resolved and clicked independently: a rung whose click fails
// is abandoned for the next one.
func SubmitLadder() []Selector {
	return []Selector{
		{ByCSS, "button[type='submit'].btn-save"},
		{ByXPath, "//button[contains(@id, 'activityForm')]//span[contains(text(), 'Save')]"},
		{ByCSS, "button.ui-area-btn-success"},
		{ByXPath, "//button[contains(@class, 'ui-button')]//span[normalize-space()='Save']"},
		{ByCSS, "button[type='submit']"},
		{ByXPath, "//button[contains(@class, 'ui-button')]"},
	}
}

// SuccessIndicators are scanned in order after submit; the first visible
// one decides the outcome. They run from the portlet's own confirmation
// label down to generic PrimeFaces notice containers.
func SuccessIndicators() []Selector {
	return []Selector{
		{ByXPath, "//div[@id='_activities_WAR_northstarportlet_:activityForm:activityMessage']//label[contains(@class, 'portlet-msg-success')]"},
		{ByXPath, "//label[contains(text(), 'Reservation created successfully')]"},
		{ByXPath, "//label[contains(@class, 'activity-message') and contains(text(), 'successfully')]"},
		{ByXPath, "//div[contains(@class, 'ui-messages-info')]"},
		{ByXPath, "//div[contains(@class, 'ui-growl-item')]"},
	}
}

// FailureIndicators are scanned only when no success indicator was visible.
func FailureIndicators() []Selector {
	return []Selector{
		{ByXPath, "//div[contains(@class, 'ui-messages-error')]"},
		{ByXPath, "//div[contains(@class, 'ui-message-error')]"},
		{ByXPath, "//div[contains(@class, 'ui-growl-error')]"},
		{ByXPath, "//div[contains(text(), 'error')]"},
		{ByXPath, "//div[contains(text(), 'unavailable')]"},
		{ByXPath, "//div[contains(text(), 'already booked')]"},
	}
}

// xpathString renders s as an XPath string literal, concat-splitting when it
// holds both quote kinds.
func xpathString(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
