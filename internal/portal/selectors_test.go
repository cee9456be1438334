package portal

import (
	"strings"
	"testing"
)

func TestDateCellQuery(t *testing.T) {
	tgt := DateCell("25", "December", "Dec")
	if len(tgt.Candidates) != 1 {
		t.Fatalf("DateCell candidates = %d, want 1", len(tgt.Candidates))
	}
	q := tgt.Candidates[0].Query
	if tgt.Candidates[0].By != ByXPath {
		t.Errorf("DateCell selector By = %v, want xpath", tgt.Candidates[0].By)
	}
	for _, part := range []string{"horizontal-dates", "calendar-date", "'25'", "'December'", "'Dec'", "calendar-year"} {
		if !strings.Contains(q, part) {
			t.Errorf("DateCell query missing %q: %s", part, q)
		}
	}
}

func TestEntryCellQuery(t *testing.T) {
	q := EntryCell().Candidates[0].Query
	for _, part := range []string{"@data-area-id='11'", "@data-start-time='06:00 AM'", "ancestor::td[1]"} {
		if !strings.Contains(q, part) {
			t.Errorf("EntryCell query missing %q: %s", part, q)
		}
	}
}

func TestDropdownOptionQuery(t *testing.T) {
	q := DropdownOption("02:05 PM").Candidates[0].Query
	if !strings.Contains(q, "ui-selectonemenu-item") {
		t.Errorf("option query missing item class: %s", q)
	}
	if !strings.Contains(q, "@data-label='02:05 PM'") {
		t.Errorf("option query missing data-label match: %s", q)
	}
	if !strings.Contains(q, "normalize-space(text())='02:05 PM'") {
		t.Errorf("option query missing text match: %s", q)
	}
}

func TestSelectorOrdering(t *testing.T) {
	// Most specific candidates first: the Liferay ids head their lists.
	if got := UsernameField().Candidates[0].Query; !strings.Contains(got, "LoginPortlet_login") {
		t.Errorf("username candidate[0] = %q, want portlet id first", got)
	}
	if got := PasswordField().Candidates[0].Query; !strings.Contains(got, "LoginPortlet_password") {
		t.Errorf("password candidate[0] = %q, want portlet id first", got)
	}
	ladder := SubmitLadder()
	if !strings.Contains(ladder[0].Query, "btn-save") {
		t.Errorf("submit ladder[0] = %q, want btn-save first", ladder[0].Query)
	}
	if ladder[len(ladder)-1].Query != "//button[contains(@class, 'ui-button')]" {
		t.Errorf("submit ladder last = %q, want the generic ui-button fallback", ladder[len(ladder)-1].Query)
	}
}

func TestXPathString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"06:00 AM", "'06:00 AM'"},
		{`say "hi"`, `'say "hi"'`},
		{"O'Neill", `"O'Neill"`},
		{`both ' and "`, `concat('both ', "'", ' and "')`},
	}
	for _, tt := range tests {
		if got := xpathString(tt.in); got != tt.want {
			t.Errorf("xpathString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
