package tui

import (
	"encoding/json"
	"strings"
	"testing"
)

func message(t *testing.T, typ, step string, data any) Message {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	return Message{Type: typ, Step: step, Data: raw}
}

func TestApply(t *testing.T) {
	t.Run("Speech", func(t *testing.T) {
		m := initialModel(nil)
		if !m.apply(message(t, "speech", "whisk", "Keep whisking.")) {
			t.Fatalf("speech did not change the transcript")
		}

		expected := "remy: Keep whisking.\n"
		if result := m.contentView(); result != expected {
			t.Errorf("contentView() = %q, want %q", result, expected)
		}
		if m.step != "whisk" {
			t.Errorf("step = %q", m.step)
		}
	})

	t.Run("Step Check", func(t *testing.T) {
		m := initialModel(nil)
		check := stepCheck{
			Completed: true,
			Action:    observation{Explanation: "eggs are frothy"},
			Hint:      "add salt",
		}
		m.apply(message(t, "step_check", "whisk", check))

		result := m.contentView()
		for _, want := range []string{"[whisk]", "done", "eggs are frothy", "add salt"} {
			if !strings.Contains(result, want) {
				t.Errorf("contentView() = %q, missing %q", result, want)
			}
		}
	})

	t.Run("Level", func(t *testing.T) {
		m := initialModel(nil)
		if m.apply(Message{Type: "level", Level: 0.05}) {
			t.Errorf("level changed the transcript")
		}
		if m.level != 0.05 {
			t.Errorf("level = %v", m.level)
		}
		if m.contentView() != "" {
			t.Errorf("level produced content %q", m.contentView())
		}
	})

	t.Run("Raw View", func(t *testing.T) {
		m := initialModel(nil)
		m.apply(message(t, "speech", "", "hi"))
		m.showRaw = true
		if result := m.contentView(); !strings.Contains(result, `speech "hi"`) {
			t.Errorf("raw view = %q", result)
		}
	})
}

func TestLevelBar(t *testing.T) {
	tests := []struct {
		level  float64
		filled int
	}{
		{0, 0},
		{0.05, 5},
		{0.1, 10},
		{0.5, 10},
		{-1, 0},
	}
	for _, tt := range tests {
		bar := levelBar(tt.level, 10)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("levelBar(%v) has %d filled cells, want %d", tt.level, got, tt.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("levelBar(%v) is %d cells wide", tt.level, got)
		}
	}
}
