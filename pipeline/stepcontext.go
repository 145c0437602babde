package pipeline

import "sync"

// StepContext is the recipe position shared by the control surface and
// every worker. It also holds the last published action narrative, which
// belongs to the dedup gate and is forgotten whenever the step changes.
type StepContext struct {
	mu         sync.RWMutex
	step       string
	recipe     string
	steps      []string
	lastAction string
}

func NewStepContext() *StepContext {
	return &StepContext{}
}

type StepSnapshot struct {
	Step   string
	Recipe string
	Steps  []string
}

// SetCurrentStep reports whether the step changed.
func (c *StepContext) SetCurrentStep(step string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if step == c.step {
		return false
	}
	c.step = step
	c.lastAction = ""
	return true
}

func (c *StepContext) SetCurrentRecipe(name string, steps []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recipe = name
	c.steps = append([]string(nil), steps...)
}

func (c *StepContext) Step() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.step
}

func (c *StepContext) Snapshot() StepSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return StepSnapshot{
		Step:   c.step,
		Recipe: c.recipe,
		Steps:  append([]string(nil), c.steps...),
	}
}

func (c *StepContext) LastAction() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastAction
}
