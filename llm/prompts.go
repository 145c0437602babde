package llm

import (
	"fmt"
	"strings"
)

const DefaultSystemPrompt = "You are Remy, a precise real-time recipe vision assistant. " +
	"When checking recipe steps, you analyze a previous frame and a current frame from a live camera feed. " +
	"Always return structured JSON with completed, state, and action fields as instructed. " +
	"When the user speaks, respond briefly and helpfully. " +
	"Be consistent and strict: only mark a step complete when it is clearly visible."

const TranscriptionPrompt = "Transcribe this spoken audio verbatim. " +
	"Return only the words spoken, or an empty answer if nothing intelligible was said."

const CautionPrompt = "You are a kitchen safety expert. Given a recipe step, decide if it poses a physical risk. " +
	`If yes, reply with JSON: {"caution": "<5 words max>", "tip": "<7 words max>"}. ` +
	"If no risk, reply with only: none"

func StepCheckPrompt(step string) string {
	return fmt.Sprintf(`You are a precise recipe vision assistant analyzing two frames from a live camera feed.
The current recipe step to verify is: %q

Examine both the previous frame and the current frame carefully, then return ONLY a raw JSON object with exactly this structure:
{
  "completed": <true if state.completed OR action.completed is true>,
  "state": {"completed": <true if the result of the step is clearly visible in the current frame>, "explanation": "<one sentence describing the current frame>"},
  "action": {"completed": <true if a visible change between the frames completes this step>, "explanation": "<one sentence describing what changed>"},
  "hint": "<one short tip for finishing the step, or empty>"
}

Be strict: only mark completed true if you are clearly sure. Return raw JSON only, no markdown.`, step)
}

// SpeechContext renders the recipe position that accompanies every
// spoken request.
func SpeechContext(req *SpeechRequest) string {
	var b strings.Builder
	if req.Recipe != "" {
		fmt.Fprintf(&b, "Recipe: %s\n", req.Recipe)
	}
	if len(req.Steps) > 0 {
		b.WriteString("Steps:\n")
		for i, step := range req.Steps {
			marker := " "
			if step == req.Step {
				marker = ">"
			}
			fmt.Fprintf(&b, "%s %d. %s\n", marker, i+1, step)
		}
	}
	if req.Step != "" {
		fmt.Fprintf(&b, "Current step: %s\n", req.Step)
	}
	return b.String()
}
