package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"remy/llm"
	"remy/video"
)

// Dispatcher is the single consumer of speech items and step checks.
// Speech always goes first; checks are only waited for when no speech is
// pending. One Dispatcher serves one run.
type Dispatcher struct {
	flag  *RunFlag
	epoch uint64

	speech *Queue[WorkItem]
	checks *Mailbox[WorkItem]
	steps  *StepContext
	gate   *DedupGate
	out    *Publisher

	responder llm.Responder
	checker   llm.StepChecker
	history   llm.History

	systemPrompt string
	checkWait    time.Duration

	// previous is the frame of the last step check, compared against the
	// next one.
	previous *video.Frame

	log *log.Logger
}

func (d *Dispatcher) live() bool {
	return d.flag.Active(d.epoch)
}

// Run loops until the run is stopped and no speech is left.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		if item, ok := d.speech.TryPop(); ok {
			d.handle(ctx, item)
			continue
		}
		if !d.live() || ctx.Err() != nil {
			return
		}

		item, ok := d.checks.TakeWait(ctx, d.checkWait)
		if !ok {
			continue
		}
		if !d.live() {
			return
		}
		d.handle(ctx, item)
	}
}

func (d *Dispatcher) handle(ctx context.Context, item WorkItem) {
	switch item := item.(type) {
	case SpeechItem:
		d.respond(ctx, item)
	case CheckItem:
		d.check(ctx, item)
	default:
		d.log.Warn("unknown work item", "type", item)
	}
}

func (d *Dispatcher) respond(ctx context.Context, item SpeechItem) {
	if d.responder == nil {
		return
	}

	snap := d.steps.Snapshot()
	req := &llm.SpeechRequest{
		SystemPrompt: d.systemPrompt,
		Text:         item.Text,
		Frame:        item.Frame,
		Recipe:       snap.Recipe,
		Step:         item.Step,
		Steps:        snap.Steps,
	}

	start := time.Now()
	fragments, err := d.responder.Respond(ctx, req)
	if err != nil {
		d.fail(ctx, "reply failed", "error", err)
		return
	}
	reply, err := llm.Collect(fragments)
	if err != nil {
		d.fail(ctx, "reply stream failed", "error", err)
		return
	}

	result := SpeechResult{Step: item.Step, Text: reply}
	if _, ok := d.out.PublishWhile(d.live, result); !ok {
		d.log.Debug("discarding reply from stopped run", "text", item.Text)
		return
	}
	d.log.Info("replied", "text", item.Text, "elapsed", time.Since(start))

	if d.history != nil {
		d.history.Record(item.Text, reply)
	}
}

func (d *Dispatcher) check(ctx context.Context, item CheckItem) {
	if d.checker == nil {
		return
	}

	previous := d.previous
	d.previous = item.Frame

	raw, err := d.checker.CheckStep(ctx, item.Step, item.Frame, previous)
	if err != nil {
		d.fail(ctx, "step check failed", "step", item.Step, "error", err)
		return
	}

	check, err := llm.ParseStepCheck(raw)
	if err != nil {
		d.log.Debug("discarding step check", "error", err)
		return
	}

	// Liveness and the dedup decision are taken under the publisher lock,
	// so a Stop or step change in between cannot leave lastAction set for
	// a result that was never published.
	admit := func() bool {
		return d.live() && d.gate.Admit(item.Step, check.Action.Explanation, check.Completed)
	}
	result := StepCheckResult{Step: item.Step, Check: check}
	if _, ok := d.out.PublishWhile(admit, result); !ok {
		d.log.Debug("dropped step check", "step", item.Step, "action", check.Action.Explanation)
		return
	}
	d.log.Info("step check", "step", item.Step, "completed", check.Completed)
}

// fail logs a collaborator error. Errors caused by the run being canceled
// are expected on Stop and only logged at debug level.
func (d *Dispatcher) fail(ctx context.Context, msg string, keyvals ...interface{}) {
	if ctx.Err() != nil {
		d.log.Debug(msg, keyvals...)
		return
	}
	d.log.Error(msg, keyvals...)
}
