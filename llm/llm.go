// Package llm defines the inference collaborators the pipeline calls and
// the OpenAI implementation of them.
package llm

import (
	"context"

	"remy/video"
)

// Fragment is one piece of a streamed reply. A fragment with Err set is
// the last one sent.
type Fragment struct {
	Content string
	Err     error
}

type SpeechRequest struct {
	SystemPrompt string
	Text         string
	Frame        *video.Frame
	Recipe       string
	Step         string
	Steps        []string
}

// Responder produces a conversational reply to something the cook said.
// The returned channel is closed when the reply is complete.
type Responder interface {
	Respond(ctx context.Context, req *SpeechRequest) (<-chan Fragment, error)
}

// StepChecker compares two consecutive frames against a recipe step and
// returns the model's raw answer, expected to be step-check JSON.
// previous is nil on the first check of a run.
type StepChecker interface {
	CheckStep(ctx context.Context, step string, current, previous *video.Frame) (string, error)
}

// Cautioner returns the raw safety advice for a step.
type Cautioner interface {
	Caution(ctx context.Context, step string) (string, error)
}

// Collect drains a fragment stream into one string.
func Collect(fragments <-chan Fragment) (string, error) {
	var text []byte
	for f := range fragments {
		if f.Err != nil {
			// keep draining so the producer can exit
			for range fragments {
			}
			return "", f.Err
		}
		text = append(text, f.Content...)
	}
	return string(text), nil
}
