package llm

import (
	"errors"
	"testing"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"padded", "  {\"a\":1}\n", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"one line fence", "```json{\"a\":1}```", `{"a":1}`},
		{"prose", "no fence here", "no fence here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFence(tt.in); got != tt.want {
				t.Errorf("StripFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseStepCheck(t *testing.T) {
	raw := "```json\n" + `{
		"completed": true,
		"state": {"completed": true, "explanation": "the bowl holds flour"},
		"action": {"completed": false, "explanation": "a hand pours flour"},
		"hint": "level the cup"
	}` + "\n```"

	check, err := ParseStepCheck(raw)
	if err != nil {
		t.Fatalf("ParseStepCheck() error = %v", err)
	}
	if !check.Completed || !check.State.Completed || check.Action.Completed {
		t.Errorf("flags = %+v", check)
	}
	if check.Action.Explanation != "a hand pours flour" {
		t.Errorf("action explanation = %q", check.Action.Explanation)
	}
	if check.Hint != "level the cup" {
		t.Errorf("hint = %q", check.Hint)
	}
}

func TestParseStepCheckRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"I cannot see the bowl.",
		"```json\n{\"completed\": tru\n```",
		`["completed"]`,
	} {
		if _, err := ParseStepCheck(raw); !errors.Is(err, ErrMalformedCheck) {
			t.Errorf("ParseStepCheck(%q) error = %v, want ErrMalformedCheck", raw, err)
		}
	}
}

func TestParseCaution(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		if c := ParseCaution(" None "); c != nil {
			t.Errorf("ParseCaution(none) = %+v, want nil", c)
		}
	})

	t.Run("json", func(t *testing.T) {
		c := ParseCaution("```json\n{\"caution\": \"hot oil\", \"tip\": \"keep a lid nearby\"}\n```")
		if c == nil || c.Caution != "hot oil" || c.Tip == nil || *c.Tip != "keep a lid nearby" {
			t.Errorf("ParseCaution() = %+v", c)
		}
	})

	t.Run("prose fallback", func(t *testing.T) {
		c := ParseCaution("Sharp knife")
		if c == nil || c.Caution != "Sharp knife" || c.Tip != nil {
			t.Errorf("ParseCaution() = %+v", c)
		}
	})
}
