package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"

	"remy/video"
)

// OpenAIModel implements Responder, StepChecker and Cautioner on the
// OpenAI chat completion API.
type OpenAIModel struct {
	client  *openai.Client
	model   string
	history History
	log     *log.Logger
}

func NewOpenAIModel(apiKey, model string, history History, logger *log.Logger) *OpenAIModel {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIModel{
		client:  openai.NewClient(apiKey),
		model:   model,
		history: history,
		log:     logger,
	}
}

func frameURL(frame *video.Frame) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame.Data)
}

func imagePart(frame *video.Frame) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    frameURL(frame),
			Detail: openai.ImageURLDetailLow,
		},
	}
}

func textPart(text string) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: text,
	}
}

func (o *OpenAIModel) Respond(
	ctx context.Context,
	req *SpeechRequest,
) (<-chan Fragment, error) {
	system := req.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	if sc := SpeechContext(req); sc != "" {
		system += "\n\n" + sc
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		},
	}
	for _, ex := range o.history.Exchanges() {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: ex.User},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: ex.Assistant},
		)
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.Frame != nil {
		user.MultiContent = []openai.ChatMessagePart{
			textPart(req.Text),
			imagePart(req.Frame),
		}
	} else {
		user.Content = req.Text
	}
	messages = append(messages, user)

	o.log.Debug("respond", "text", req.Text, "history", len(messages)-2, "frame", req.Frame != nil)

	stream, err := o.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{
			Model:       o.model,
			Messages:    messages,
			MaxTokens:   300,
			Temperature: 0.5,
			Stream:      true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	result := make(chan Fragment)
	go func() {
		defer close(result)
		defer stream.Close()
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case result <- Fragment{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			if len(response.Choices) == 0 {
				continue
			}
			select {
			case result <- Fragment{Content: response.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return result, nil
}

func (o *OpenAIModel) CheckStep(
	ctx context.Context,
	step string,
	current, previous *video.Frame,
) (string, error) {
	var parts []openai.ChatMessagePart
	if previous != nil {
		parts = append(parts, textPart("Previous frame:"), imagePart(previous))
	}
	parts = append(parts, textPart("Current frame:"), imagePart(current))

	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: StepCheckPrompt(step)},
				{Role: openai.ChatMessageRoleUser, MultiContent: parts},
			},
			MaxTokens:   300,
			Temperature: 0.2,
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIModel) Caution(ctx context.Context, step string) (string, error) {
	resp, err := o.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: CautionPrompt},
				{Role: openai.ChatMessageRoleUser, Content: "Recipe step: " + step},
			},
			Temperature: 0.3,
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
