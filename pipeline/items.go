package pipeline

import (
	"remy/llm"
	"remy/video"
)

// WorkItem is what the dispatcher consumes: a SpeechItem or a CheckItem.
type WorkItem interface {
	workItem()
}

// SpeechItem is an accepted utterance paired with the frame that was
// current when it was transcribed. Frame may be nil before the camera
// has produced anything.
type SpeechItem struct {
	Text  string
	Frame *video.Frame
	Step  string
}

// CheckItem asks the dispatcher to verify Step against Frame.
type CheckItem struct {
	Frame *video.Frame
	Step  string
}

func (SpeechItem) workItem() {}
func (CheckItem) workItem()  {}

// Result is what the dispatcher publishes: a StepCheckResult or a
// SpeechResult.
type Result interface {
	result()
}

type StepCheckResult struct {
	Step  string
	Check llm.StepCheck
}

type SpeechResult struct {
	Step string
	Text string
}

func (StepCheckResult) result() {}
func (SpeechResult) result()    {}
