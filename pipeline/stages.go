package pipeline

import (
	"context"
	"strings"
	"time"

	"remy/audio"
)

func (c *Controller) live(ctx context.Context, r *run) bool {
	return ctx.Err() == nil && c.flag.Active(r.epoch)
}

func (c *Controller) active(r *run) func() bool {
	return func() bool { return c.flag.Active(r.epoch) }
}

func (c *Controller) captureAudio(ctx context.Context, r *run) {
	err := c.sources.Audio.Run(ctx, func(chunk audio.Chunk) {
		c.level.Set(chunk.RMS)
		r.pushWhile(c.active(r), func() { r.chunks.Push(chunk) })
	})
	if err != nil && ctx.Err() == nil {
		c.hear.Error("audio capture ended", "error", err)
	}
}

func (c *Controller) segmentLoop(ctx context.Context, r *run) {
	seg := audio.NewSegmenter(c.opts.Segmenter)
	for c.live(ctx, r) {
		chunk, ok := r.chunks.PopWait(ctx, c.opts.PollWait)
		if !ok {
			continue
		}
		if utt, ok := seg.Push(chunk); ok {
			c.hear.Debug("utterance", "duration", utt.Duration(), "voiced", utt.Voiced)
			r.pushWhile(c.active(r), func() { r.utterances.Push(utt) })
		}
	}
}

func (c *Controller) transcribeLoop(ctx context.Context, r *run) {
	for c.live(ctx, r) {
		utt, ok := r.utterances.PopWait(ctx, c.opts.PollWait)
		if !ok {
			continue
		}
		c.transcribe(ctx, r, utt)
	}
}

// transcribe turns one utterance into a speech item if it was addressed to
// the assistant.
func (c *Controller) transcribe(ctx context.Context, r *run, utt *audio.Utterance) bool {
	wav := audio.EncodeWAV(utt.Samples, utt.SampleRate)
	text, err := c.collab.Transcriber.Transcribe(ctx, wav)
	if err != nil {
		if ctx.Err() != nil {
			c.hear.Debug("transcription abandoned", "error", err)
		} else {
			c.hear.Error("transcription failed", "error", err)
		}
		return false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if !HasWakeWord(text, c.opts.WakeWord) {
		c.hear.Info("heard", "text", text)
		return false
	}
	frame, _ := c.frames.Latest()
	item := SpeechItem{
		Text:  text,
		Frame: frame,
		Step:  c.steps.Step(),
	}
	if !r.pushWhile(c.active(r), func() { r.speech.Push(item) }) {
		return false
	}
	c.hear.Info("addressed", "text", text)
	return true
}

// HasWakeWord reports whether text contains word, ignoring case. An empty
// word accepts everything.
func HasWakeWord(text, word string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(word))
}

func (c *Controller) sampleLoop(ctx context.Context, r *run) {
	ticker := time.NewTicker(c.opts.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.flag.Active(r.epoch) {
				return
			}
			c.sample(r)
		}
	}
}

// sample offers the current frame for a step check, replacing any check
// that has not been picked up yet.
func (c *Controller) sample(r *run) bool {
	step := c.steps.Step()
	if step == "" {
		return false
	}
	frame, ok := c.frames.Latest()
	if !ok {
		return false
	}
	var replaced bool
	ok = r.pushWhile(c.active(r), func() {
		replaced = r.checks.Put(CheckItem{Frame: frame, Step: step})
	})
	if replaced {
		c.see.Debug("replaced stale check", "seq", frame.Seq)
	}
	return ok
}

func (c *Controller) captureVideo(ctx context.Context, r *run) {
	err := c.sources.Video.Run(ctx, c.frames)
	if err != nil && ctx.Err() == nil {
		c.see.Error("video capture ended", "error", err)
	}
}
