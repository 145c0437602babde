package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"remy/audio"
	"remy/llm"
	"remy/stt"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.SampleInterval = 10 * time.Millisecond
	opts.CheckWait = 5 * time.Millisecond
	opts.PollWait = 5 * time.Millisecond
	return opts
}

func quietLoggers() Loggers {
	return Loggers{Hear: quietLogger(), See: quietLogger(), Think: quietLogger()}
}

func newTestController(collab Collaborators, sources Sources) *Controller {
	return New(testOptions(), collab, sources, quietLoggers())
}

// scriptedAudio plays a fixed sequence of chunks and then waits for
// cancellation, like a microphone that has gone quiet.
type scriptedAudio struct {
	chunks []audio.Chunk
}

func (s *scriptedAudio) Run(ctx context.Context, emit func(audio.Chunk)) error {
	for _, c := range s.chunks {
		emit(c)
	}
	<-ctx.Done()
	return ctx.Err()
}

func constant(format audio.Format, amplitude float32, d time.Duration) []audio.Chunk {
	var out []audio.Chunk
	for elapsed := time.Duration(0); elapsed < d; elapsed += format.ChunkDuration() {
		samples := make([]float32, format.ChunkSize)
		for i := range samples {
			samples[i] = amplitude
		}
		out = append(out, audio.NewChunk(samples))
	}
	return out
}

func TestControllerLifecycle(t *testing.T) {
	c := newTestController(Collaborators{}, Sources{})

	if c.Stop() {
		t.Errorf("Stop() before Start reported a stop")
	}

	if err := c.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if !c.Running() {
		t.Fatalf("not running after Start")
	}
	if err := c.Start(context.Background(), ""); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	if !c.Stop() {
		t.Errorf("Stop() did not report a stop")
	}
	if c.Stop() {
		t.Errorf("second Stop() reported a stop")
	}
	c.Wait()

	if err := c.Start(context.Background(), "be brief"); err != nil {
		t.Fatalf("restart = %v", err)
	}
	c.Stop()
	c.Wait()
}

func TestControllerStopFlushes(t *testing.T) {
	c := newTestController(Collaborators{}, Sources{})
	if err := c.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	c.mu.Lock()
	r := c.current
	c.mu.Unlock()

	r.chunks.Push(audio.NewChunk(make([]float32, 4)))
	r.utterances.Push(&audio.Utterance{})
	r.checks.Put(CheckItem{Frame: frameSeq(1)})
	c.results.Publish(SpeechResult{Text: "stale"})
	c.frames.Put([]byte{1}, 1, 1, time.Now())

	c.Stop()
	c.Wait()

	st := c.Status()
	if st.Running {
		t.Errorf("Status().Running after Stop")
	}
	if st.Queues != (QueueDepths{}) {
		t.Errorf("queues not empty after Stop: %+v", st.Queues)
	}
	if _, ok := c.frames.Latest(); ok {
		t.Errorf("frame store kept a frame after Stop")
	}
}

// floodingAudio alternates loud and silent chunks as fast as it can, so
// every pair closes an utterance.
type floodingAudio struct {
	format audio.Format
}

func (f *floodingAudio) Run(ctx context.Context, emit func(audio.Chunk)) error {
	loud := constant(f.format, 0.5, f.format.ChunkDuration())[0]
	quiet := constant(f.format, 0, f.format.ChunkDuration())[0]
	for ctx.Err() == nil {
		emit(loud)
		emit(quiet)
	}
	return ctx.Err()
}

func TestControllerStopLeavesNothingQueued(t *testing.T) {
	opts := testOptions()
	opts.Segmenter.SilenceDuration = time.Millisecond
	opts.Segmenter.MinSpeech = 0
	transcriber := stt.TranscriberFunc(func(ctx context.Context, wav []byte) (string, error) {
		return "remy, quick question", nil
	})
	c := New(opts,
		Collaborators{Transcriber: transcriber},
		Sources{Audio: &floodingAudio{format: opts.Segmenter.Format}},
		quietLoggers(),
	)

	for i := 0; i < 200; i++ {
		if err := c.Start(context.Background(), ""); err != nil {
			t.Fatalf("Start() #%d = %v", i, err)
		}
		time.Sleep(200 * time.Microsecond)
		c.Stop()
		c.Wait()

		if st := c.Status(); st.Queues != (QueueDepths{}) {
			t.Fatalf("cycle %d left work queued after Stop: %+v", i, st.Queues)
		}
	}
}

func TestSetCurrentRecipeResetsHistory(t *testing.T) {
	history := llm.NewRollingHistory(10)
	c := newTestController(Collaborators{History: history}, Sources{})

	history.Record("remy, what is a roux?", "flour cooked in fat")
	c.SetCurrentRecipe("pancakes", []string{"whisk the eggs", "fold in the flour"})

	if n := len(history.Exchanges()); n != 0 {
		t.Errorf("history kept %d exchanges across recipes", n)
	}
	if st := c.Status(); st.Recipe != "pancakes" || len(st.Steps) != 2 {
		t.Errorf("Status() = %+v", st)
	}
}

func TestTranscribe(t *testing.T) {
	heard := "hey there"
	var fail error
	transcriber := stt.TranscriberFunc(func(ctx context.Context, wav []byte) (string, error) {
		if len(wav) < 44 {
			t.Errorf("transcriber got %d bytes, want a WAV file", len(wav))
		}
		return heard, fail
	})

	c := newTestController(Collaborators{Transcriber: transcriber}, Sources{})
	epoch, _ := c.flag.Raise()
	r := newRun(epoch)
	utt := &audio.Utterance{Samples: make([]float32, 16000), SampleRate: 16000}
	ctx := context.Background()

	t.Run("no wake word", func(t *testing.T) {
		if c.transcribe(ctx, r, utt) || r.speech.Len() != 0 {
			t.Fatalf("%q produced a speech item", heard)
		}
	})

	t.Run("empty transcript", func(t *testing.T) {
		heard = "  "
		if c.transcribe(ctx, r, utt) || r.speech.Len() != 0 {
			t.Fatalf("empty transcript produced a speech item")
		}
	})

	t.Run("error is survivable", func(t *testing.T) {
		heard, fail = "", errors.New("connection reset")
		if c.transcribe(ctx, r, utt) {
			t.Fatalf("failed transcription produced a speech item")
		}
		fail = nil
	})

	t.Run("wake word", func(t *testing.T) {
		heard = "REMY, what comes next?"
		c.SetCurrentStep("whisk the eggs")
		c.frames.Put([]byte{1, 2, 3}, 1, 1, time.Now())

		if !c.transcribe(ctx, r, utt) {
			t.Fatalf("addressed speech was dropped")
		}
		item, ok := r.speech.TryPop()
		if !ok {
			t.Fatalf("no speech item queued")
		}
		si := item.(SpeechItem)
		if si.Text != heard || si.Step != "whisk the eggs" {
			t.Errorf("item = %+v", si)
		}
		if si.Frame == nil || si.Frame.Seq != 1 {
			t.Fatalf("item frame = %+v", si.Frame)
		}

		si.Frame.Data[0] = 99
		latest, _ := c.frames.Latest()
		if latest.Data[0] != 1 {
			t.Errorf("speech item shares the stored frame")
		}
	})
}

func TestHasWakeWord(t *testing.T) {
	tests := []struct {
		text, word string
		want       bool
	}{
		{"Remy, help", "remy", true},
		{"hey there", "remy", false},
		{"anything", "", true},
		{"REMY", "Remy", true},
	}
	for _, tt := range tests {
		if got := HasWakeWord(tt.text, tt.word); got != tt.want {
			t.Errorf("HasWakeWord(%q, %q) = %v, want %v", tt.text, tt.word, got, tt.want)
		}
	}
}

func TestSampleKeepsLatest(t *testing.T) {
	c := newTestController(Collaborators{}, Sources{})
	epoch, _ := c.flag.Raise()
	r := newRun(epoch)

	c.frames.Put([]byte{1}, 1, 1, time.Now())
	if c.sample(r) {
		t.Fatalf("sampled without a current step")
	}

	c.SetCurrentStep("whisk the eggs")
	for i := 0; i < 3; i++ {
		c.frames.Put([]byte{byte(i)}, 1, 1, time.Now())
		if !c.sample(r) {
			t.Fatalf("tick %d produced no check", i)
		}
		if r.checks.Len() != 1 {
			t.Fatalf("check mailbox holds %d items", r.checks.Len())
		}
	}

	item, ok := r.checks.TryTake()
	if !ok {
		t.Fatalf("no pending check")
	}
	if got := item.(CheckItem).Frame.Data[0]; got != 2 {
		t.Errorf("dispatcher would see frame %d, want the third", got)
	}
	if r.checks.Drops() != 2 {
		t.Errorf("Drops() = %d, want 2", r.checks.Drops())
	}
}

func TestControllerHearsAndReplies(t *testing.T) {
	format := audio.DefaultFormat
	var chunks []audio.Chunk
	chunks = append(chunks, constant(format, 0.05, 600*time.Millisecond)...)
	chunks = append(chunks, constant(format, 0.01, time.Second)...)

	transcriber := stt.TranscriberFunc(func(ctx context.Context, wav []byte) (string, error) {
		return "remy what now", nil
	})
	c := newTestController(
		Collaborators{Transcriber: transcriber, Responder: &fakeResponder{}},
		Sources{Audio: &scriptedAudio{chunks: chunks}},
	)
	c.SetCurrentStep("whisk the eggs")

	if err := c.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	defer func() {
		c.Stop()
		c.Wait()
	}()

	ev, ok := c.Results().Next(context.Background(), 2*time.Second)
	if !ok {
		t.Fatalf("no result published")
	}
	sr, ok := ev.Result.(SpeechResult)
	if !ok {
		t.Fatalf("result = %#v, want SpeechResult", ev.Result)
	}
	if sr.Text != "reply to remy what now" || sr.Step != "whisk the eggs" {
		t.Errorf("result = %+v", sr)
	}
	eventually(t, "level of the trailing silence", func() bool {
		return c.Level() > 0.009 && c.Level() < 0.011
	})
}
