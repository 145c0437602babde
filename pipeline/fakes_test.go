package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"remy/llm"
	"remy/video"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

// recorder notes the order in which collaborators were called.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeResponder struct {
	rec *recorder
	// release, when set, holds the stream open until closed.
	release chan struct{}
	started chan struct{}
}

func (f *fakeResponder) Respond(ctx context.Context, req *llm.SpeechRequest) (<-chan llm.Fragment, error) {
	if f.rec != nil {
		f.rec.add("speech:" + req.Text)
	}
	out := make(chan llm.Fragment)
	go func() {
		defer close(out)
		if f.started != nil {
			f.started <- struct{}{}
		}
		if f.release != nil {
			<-f.release
		}
		out <- llm.Fragment{Content: "reply to "}
		out <- llm.Fragment{Content: req.Text}
	}()
	return out, nil
}

// failingResponder fails every request, with ctx.Err() once ctx is done.
type failingResponder struct{}

func (failingResponder) Respond(ctx context.Context, req *llm.SpeechRequest) (<-chan llm.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("model unavailable")
}

type checkCall struct {
	step     string
	current  uint64
	previous uint64
}

type fakeChecker struct {
	mu     sync.Mutex
	rec    *recorder
	answer string
	err    error
	calls  []checkCall
	// onCall, when set, runs while the check is in flight.
	onCall func()
}

func (f *fakeChecker) CheckStep(ctx context.Context, step string, current, previous *video.Frame) (string, error) {
	call := checkCall{step: step, current: current.Seq}
	if previous != nil {
		call.previous = previous.Seq
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.rec != nil {
		f.rec.add(fmt.Sprintf("check:%d", current.Seq))
	}
	if f.onCall != nil {
		f.onCall()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeChecker) callList() []checkCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]checkCall(nil), f.calls...)
}

const validCheck = "```json\n" + `{"completed": false, "state": {"completed": false, "explanation": "bowl is empty"}, "action": {"completed": false, "explanation": "a hand is reaching for the whisk"}, "hint": "crack the eggs first"}` + "\n```"

func frameSeq(seq uint64) *video.Frame {
	return &video.Frame{Data: []byte{byte(seq)}, Width: 1, Height: 1, Seq: seq}
}

// eventually polls cond until it holds or a second has passed.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
