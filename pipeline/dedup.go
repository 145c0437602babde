package pipeline

import (
	"strings"
	"unicode"
)

const DefaultDedupThreshold = 0.4

// DedupGate suppresses step-check results whose action narrative is close
// to the last one published, so a 1s check cadence does not repeat the
// same sentence. A newly completed step always passes.
type DedupGate struct {
	threshold float64
	steps     *StepContext
}

func NewDedupGate(threshold float64, steps *StepContext) *DedupGate {
	return &DedupGate{threshold: threshold, steps: steps}
}

// Admit decides whether a result for step with this action text may be
// published and, if so, records the text as the last published one. A
// result for a step that is no longer current is never admitted.
func (g *DedupGate) Admit(step, action string, completed bool) bool {
	g.steps.mu.Lock()
	defer g.steps.mu.Unlock()

	if step != g.steps.step {
		return false
	}
	if !completed && Similarity(action, g.steps.lastAction) >= g.threshold {
		return false
	}
	g.steps.lastAction = action
	return true
}

// Similarity is the Jaccard index of the normalized word sets of a and b.
// It is 0 when either side has no words.
func Similarity(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	union := len(wa) + len(wb) - shared
	return float64(shared) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			return unicode.ToLower(r)
		default:
			return -1
		}
	}, s)

	set := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		set[w] = struct{}{}
	}
	return set
}
