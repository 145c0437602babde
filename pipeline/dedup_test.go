package pipeline

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"remy/llm"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "stir the pot", "stir the pot", 1},
		{"case and punctuation", "Stir the pot!", "stir, THE pot", 1},
		{"disjoint", "chop onions", "boil water", 0},
		{"whisk", "a hand is reaching for the whisk", "a hand is near the whisk", 5.0 / 8.0},
		{"empty left", "", "stir the pot", 0},
		{"empty right", "stir", "", 0},
		{"only punctuation", "...", "...", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDedupGate(t *testing.T) {
	t.Run("suppresses near duplicates", func(t *testing.T) {
		steps := NewStepContext()
		steps.SetCurrentStep("whisk the eggs")
		g := NewDedupGate(DefaultDedupThreshold, steps)

		if !g.Admit("whisk the eggs", "a hand is reaching for the whisk", false) {
			t.Fatalf("first result suppressed")
		}
		if g.Admit("whisk the eggs", "a hand is near the whisk", false) {
			t.Fatalf("near-identical result admitted")
		}
		if got := steps.LastAction(); got != "a hand is reaching for the whisk" {
			t.Errorf("suppression updated the stored action to %q", got)
		}
	})

	t.Run("completed always passes", func(t *testing.T) {
		steps := NewStepContext()
		g := NewDedupGate(DefaultDedupThreshold, steps)

		g.Admit("", "eggs are being whisked in the bowl", false)
		if !g.Admit("", "eggs are being whisked in the bowl", true) {
			t.Fatalf("completed result suppressed")
		}
	})

	t.Run("different scene passes", func(t *testing.T) {
		steps := NewStepContext()
		g := NewDedupGate(DefaultDedupThreshold, steps)

		g.Admit("", "a hand is reaching for the whisk", false)
		if !g.Admit("", "butter melting in a pan", false) {
			t.Fatalf("distinct result suppressed")
		}
		if got := steps.LastAction(); got != "butter melting in a pan" {
			t.Errorf("LastAction() = %q", got)
		}
	})

	t.Run("empty text never suppressed", func(t *testing.T) {
		steps := NewStepContext()
		g := NewDedupGate(DefaultDedupThreshold, steps)

		if !g.Admit("", "", false) || !g.Admit("", "", false) {
			t.Fatalf("empty action suppressed")
		}
	})

	t.Run("step change forgets the last action", func(t *testing.T) {
		steps := NewStepContext()
		steps.SetCurrentStep("one")
		g := NewDedupGate(DefaultDedupThreshold, steps)

		g.Admit("one", "a hand is reaching for the whisk", false)
		if steps.SetCurrentStep("one") {
			t.Errorf("setting the same step reported a change")
		}
		if steps.LastAction() == "" {
			t.Errorf("same step cleared the last action")
		}

		steps.SetCurrentStep("two")
		if !g.Admit("two", "a hand is near the whisk", false) {
			t.Fatalf("result suppressed after the step changed")
		}
	})

	t.Run("result for an old step is refused", func(t *testing.T) {
		steps := NewStepContext()
		steps.SetCurrentStep("two")
		g := NewDedupGate(DefaultDedupThreshold, steps)

		if g.Admit("one", "butter melting in a pan", false) {
			t.Fatalf("result for a previous step admitted")
		}
		if got := steps.LastAction(); got != "" {
			t.Errorf("refused result stored action %q", got)
		}
	})
}

func TestEventJSON(t *testing.T) {
	p := NewPublisher()
	check := llm.StepCheck{
		Completed: true,
		State:     llm.Observation{Completed: true, Explanation: "eggs are frothy"},
		Action:    llm.Observation{Explanation: "whisking"},
	}
	p.Publish(StepCheckResult{Step: "whisk", Check: check})
	p.Publish(SpeechResult{Step: "whisk", Text: "looks good"})

	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}

	t.Run("step check", func(t *testing.T) {
		ev, _ := p.queue.TryPop()
		raw, err := json.Marshal(ev)
		if err != nil {
			t.Fatal(err)
		}
		var got struct {
			ID   string
			Type string
			Step string
			Data llm.StepCheck
		}
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatal(err)
		}
		if got.Type != "step_check" || got.Step != "whisk" || got.ID == "" {
			t.Errorf("envelope = %s", raw)
		}
		if got.Data != check {
			t.Errorf("data = %+v, want %+v", got.Data, check)
		}
	})

	t.Run("speech", func(t *testing.T) {
		ev, _ := p.queue.TryPop()
		raw, err := json.Marshal(ev)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(raw), `"type":"speech"`) || !strings.Contains(string(raw), `"data":"looks good"`) {
			t.Errorf("envelope = %s", raw)
		}
	})

	t.Run("PublishWhile refuses dead runs", func(t *testing.T) {
		if _, ok := p.PublishWhile(func() bool { return false }, SpeechResult{Text: "late"}); ok {
			t.Fatalf("PublishWhile() published for a dead run")
		}
		if p.Len() != 0 {
			t.Errorf("Len() = %d", p.Len())
		}
	})
}
