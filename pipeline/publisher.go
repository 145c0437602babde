package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a published Result stamped with an id and publication time.
type Event struct {
	ID     string
	At     time.Time
	Result Result
}

// MarshalJSON renders the streaming envelope:
//
//	{"id":..,"type":"step_check","step":..,"data":{"completed":..,"state":{..},"action":{..},"hint":..},"at":..}
//	{"id":..,"type":"speech","step":..,"data":"<reply>","at":..}
func (e Event) MarshalJSON() ([]byte, error) {
	type envelope struct {
		ID   string    `json:"id"`
		Type string    `json:"type"`
		Step string    `json:"step"`
		Data any       `json:"data"`
		At   time.Time `json:"at"`
	}

	env := envelope{ID: e.ID, At: e.At}
	switch r := e.Result.(type) {
	case StepCheckResult:
		env.Type, env.Step, env.Data = "step_check", r.Step, r.Check
	case SpeechResult:
		env.Type, env.Step, env.Data = "speech", r.Step, r.Text
	default:
		return nil, fmt.Errorf("unknown result %T", e.Result)
	}
	return json.Marshal(env)
}

// Publisher is the unbounded output queue read by the streaming layer.
// Publication and Drain share a lock so that a result checked against a
// live run either lands before a stop's drain or not at all.
type Publisher struct {
	mu    sync.Mutex
	queue *Queue[Event]
}

func NewPublisher() *Publisher {
	return &Publisher{queue: NewQueue[Event]()}
}

func (p *Publisher) Publish(r Result) Event {
	ev, _ := p.PublishWhile(func() bool { return true }, r)
	return ev
}

// PublishWhile publishes r only if live still reports true once the
// publisher lock is held.
func (p *Publisher) PublishWhile(live func() bool, r Result) (Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !live() {
		return Event{}, false
	}
	ev := Event{
		ID:     uuid.NewString(),
		At:     time.Now(),
		Result: r,
	}
	p.queue.Push(ev)
	return ev, true
}

// Next waits up to timeout for the next event.
func (p *Publisher) Next(ctx context.Context, timeout time.Duration) (Event, bool) {
	return p.queue.PopWait(ctx, timeout)
}

func (p *Publisher) Len() int {
	return p.queue.Len()
}

func (p *Publisher) Drain() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Drain()
}
