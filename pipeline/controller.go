// Package pipeline fuses the audio and video streams into one ordered
// stream of results: utterances become speech items, sampled frames
// become step checks, and a single dispatcher serializes both.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"remy/audio"
	"remy/llm"
	"remy/stt"
	"remy/video"
)

var ErrAlreadyRunning = errors.New("pipeline already running")

type Options struct {
	Segmenter      audio.SegmenterConfig
	WakeWord       string
	SampleInterval time.Duration
	CheckWait      time.Duration
	PollWait       time.Duration
	DedupThreshold float64
	SystemPrompt   string
}

func DefaultOptions() Options {
	return Options{
		Segmenter:      audio.DefaultSegmenterConfig,
		WakeWord:       "remy",
		SampleInterval: time.Second,
		CheckWait:      500 * time.Millisecond,
		PollWait:       500 * time.Millisecond,
		DedupThreshold: DefaultDedupThreshold,
		SystemPrompt:   llm.DefaultSystemPrompt,
	}
}

type Collaborators struct {
	Transcriber stt.Transcriber
	Checker     llm.StepChecker
	Responder   llm.Responder
	History     llm.History
}

type AudioSource interface {
	Run(ctx context.Context, emit func(audio.Chunk)) error
}

type VideoSource interface {
	Run(ctx context.Context, store *video.Store) error
}

// Sources may leave Audio nil, in which case the pipeline only runs
// step checks.
type Sources struct {
	Audio AudioSource
	Video VideoSource
}

type Loggers struct {
	Hear  *log.Logger
	See   *log.Logger
	Think *log.Logger
}

// run holds the queues of one Start..Stop cycle. Workers only ever touch
// the run they were started with.
type run struct {
	epoch  uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders pushes against flush, so nothing lands in a queue after
	// the stop-time drain.
	mu sync.Mutex

	chunks     *Queue[audio.Chunk]
	utterances *Queue[*audio.Utterance]
	speech     *Queue[WorkItem]
	checks     *Mailbox[WorkItem]
}

func newRun(epoch uint64) *run {
	return &run{
		epoch:      epoch,
		chunks:     NewQueue[audio.Chunk](),
		utterances: NewQueue[*audio.Utterance](),
		speech:     NewQueue[WorkItem](),
		checks:     NewMailbox[WorkItem](),
	}
}

// pushWhile runs push only if live still reports true once r.mu is held.
func (r *run) pushWhile(live func() bool, push func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !live() {
		return false
	}
	push()
	return true
}

func (r *run) flush() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.chunks.Drain() + r.utterances.Drain() + r.speech.Drain()
	if r.checks.Drain() {
		n++
	}
	return n
}

type Controller struct {
	opts    Options
	collab  Collaborators
	sources Sources

	flag    RunFlag
	frames  *video.Store
	steps   *StepContext
	gate    *DedupGate
	results *Publisher
	level   audio.Level

	// mu serializes Start and Stop.
	mu      sync.Mutex
	current *run

	hear  *log.Logger
	see   *log.Logger
	think *log.Logger
}

func New(opts Options, collab Collaborators, sources Sources, logs Loggers) *Controller {
	steps := NewStepContext()
	c := &Controller{
		opts:    opts,
		collab:  collab,
		sources: sources,
		frames:  video.NewStore(),
		steps:   steps,
		gate:    NewDedupGate(opts.DedupThreshold, steps),
		results: NewPublisher(),
		hear:    orDefault(logs.Hear),
		see:     orDefault(logs.See),
		think:   orDefault(logs.Think),
	}
	return c
}

func orDefault(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}

// Start launches the workers of a new run. An empty systemPrompt keeps the
// configured one.
func (c *Controller) Start(ctx context.Context, systemPrompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flag.Running() {
		return ErrAlreadyRunning
	}
	c.flush()

	epoch, ok := c.flag.Raise()
	if !ok {
		return ErrAlreadyRunning
	}
	if systemPrompt == "" {
		systemPrompt = c.opts.SystemPrompt
	}

	r := newRun(epoch)
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	c.current = r

	d := &Dispatcher{
		flag:         &c.flag,
		epoch:        epoch,
		speech:       r.speech,
		checks:       r.checks,
		steps:        c.steps,
		gate:         c.gate,
		out:          c.results,
		responder:    c.collab.Responder,
		checker:      c.collab.Checker,
		history:      c.collab.History,
		systemPrompt: systemPrompt,
		checkWait:    c.opts.CheckWait,
		log:          c.think,
	}

	c.spawn(r, func() { d.Run(runCtx) })
	c.spawn(r, func() { c.sampleLoop(runCtx, r) })
	if c.sources.Video != nil {
		c.spawn(r, func() { c.captureVideo(runCtx, r) })
	}
	if c.sources.Audio != nil && c.collab.Transcriber != nil {
		c.spawn(r, func() { c.captureAudio(runCtx, r) })
		c.spawn(r, func() { c.segmentLoop(runCtx, r) })
		c.spawn(r, func() { c.transcribeLoop(runCtx, r) })
	} else {
		c.hear.Info("no audio source, running step checks only")
	}

	c.think.Info("pipeline started", "run", epoch)
	return nil
}

func (c *Controller) spawn(r *run, f func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		f()
	}()
}

// Stop ends the current run and empties every queue. It reports whether a
// run was actually stopped; calling it again is harmless.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	stopped := c.flag.Lower()
	if stopped && c.current != nil {
		c.current.cancel()
	}
	dropped := c.flush()
	if stopped {
		c.think.Info("pipeline stopped", "dropped", dropped)
	}
	return stopped
}

func (c *Controller) flush() int {
	n := c.results.Drain()
	if c.current != nil {
		n += c.current.flush()
	}
	c.frames.Clear()
	return n
}

// Wait blocks until every worker of the most recent run has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()

	if r != nil {
		r.wg.Wait()
	}
}

func (c *Controller) Running() bool {
	return c.flag.Running()
}

func (c *Controller) SetCurrentStep(step string) {
	if c.steps.SetCurrentStep(step) {
		c.think.Info("current step", "step", step)
	}
}

// SetCurrentRecipe also starts a fresh conversation.
func (c *Controller) SetCurrentRecipe(name string, steps []string) {
	c.steps.SetCurrentRecipe(name, steps)
	if c.collab.History != nil {
		c.collab.History.Reset()
	}
	c.think.Info("current recipe", "name", name, "steps", len(steps))
}

func (c *Controller) Steps() StepSnapshot {
	return c.steps.Snapshot()
}

func (c *Controller) Results() *Publisher {
	return c.results
}

// Level is the RMS of the most recent audio chunk.
func (c *Controller) Level() float64 {
	return c.level.Get()
}

type QueueDepths struct {
	Chunks     int `json:"chunks"`
	Utterances int `json:"utterances"`
	Speech     int `json:"speech"`
	Checks     int `json:"checks"`
	Results    int `json:"results"`
}

type Status struct {
	Running    bool        `json:"running"`
	Recipe     string      `json:"recipe"`
	Step       string      `json:"step"`
	Steps      []string    `json:"steps"`
	Queues     QueueDepths `json:"queues"`
	CheckDrops uint64      `json:"check_drops"`
	Level      float64     `json:"level"`
}

func (c *Controller) Status() Status {
	snap := c.steps.Snapshot()
	st := Status{
		Running: c.flag.Running(),
		Recipe:  snap.Recipe,
		Step:    snap.Step,
		Steps:   snap.Steps,
		Level:   c.level.Get(),
	}
	st.Queues.Results = c.results.Len()

	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r != nil {
		st.Queues.Chunks = r.chunks.Len()
		st.Queues.Utterances = r.utterances.Len()
		st.Queues.Speech = r.speech.Len()
		st.Queues.Checks = r.checks.Len()
		st.CheckDrops = r.checks.Drops()
	}
	return st
}
