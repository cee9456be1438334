package browser

import (
	"fmt"
	"strings"
	"testing"
)

func TestJSONEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`#plain`, `"#plain"`},
		{`//div[@data-start-time='06:00 AM']`, `"//div[@data-start-time='06:00 AM']"`},
		{`a"b`, `"a\"b"`},
		{`back\slash`, `"back\\slash"`},
	}
	for _, tt := range tests {
		if got := jsonEncode(tt.in); got != tt.want {
			t.Errorf("jsonEncode(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestScriptFormatting(t *testing.T) {
	q := `//td[@class="cell"]`
	script := fmt.Sprintf(clickScript, jsonEncode(q), true)
	if !strings.Contains(script, `"//td[@class=\"cell\"]"`) {
		t.Errorf("formatted script does not carry the encoded query:\n%s", script)
	}
	if !strings.Contains(script, `}, true)`) && !strings.HasSuffix(script, "true)") {
		t.Errorf("formatted script does not carry the xpath flag:\n%s", script)
	}
	if strings.Contains(script, "%s") || strings.Contains(script, "%t") {
		t.Errorf("formatted script has unexpanded verbs:\n%s", script)
	}
}

func TestProbeScriptFormatting(t *testing.T) {
	script := fmt.Sprintf(visibleTextScript, jsonEncode(".alert-success"), false)
	if !strings.Contains(script, `".alert-success"`) {
		t.Errorf("probe script does not carry the encoded query:\n%s", script)
	}
	if strings.Contains(script, "%s") || strings.Contains(script, "%t") {
		t.Errorf("probe script has unexpanded verbs:\n%s", script)
	}
}
