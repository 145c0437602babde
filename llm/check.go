package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedCheck = errors.New("malformed step check")

type Observation struct {
	Completed   bool   `json:"completed"`
	Explanation string `json:"explanation"`
}

// StepCheck is the structured verdict of a two-frame step check.
type StepCheck struct {
	Completed bool        `json:"completed"`
	State     Observation `json:"state"`
	Action    Observation `json:"action"`
	Hint      string      `json:"hint,omitempty"`
}

// StripFence removes a markdown code fence (``` or ```json) wrapped
// around a model answer.
func StripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func ParseStepCheck(raw string) (StepCheck, error) {
	var check StepCheck
	body := StripFence(raw)
	if !strings.HasPrefix(body, "{") {
		return check, fmt.Errorf("%w: not a JSON object", ErrMalformedCheck)
	}
	if err := json.Unmarshal([]byte(body), &check); err != nil {
		return check, fmt.Errorf("%w: %v", ErrMalformedCheck, err)
	}
	return check, nil
}

type Caution struct {
	Caution string  `json:"caution"`
	Tip     *string `json:"tip"`
}

// ParseCaution reads a Cautioner answer. "none" means the step is safe
// and yields nil; an answer that is not JSON becomes the caution text.
func ParseCaution(raw string) *Caution {
	body := StripFence(raw)
	if body == "" || strings.EqualFold(body, "none") {
		return nil
	}
	var c Caution
	if err := json.Unmarshal([]byte(body), &c); err != nil || c.Caution == "" {
		return &Caution{Caution: body}
	}
	return &c
}
