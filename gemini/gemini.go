// Package gemini implements the transcription and inference collaborators
// on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"remy/llm"
	"remy/video"
)

const DefaultModel = "gemini-1.5-flash"

type Provider struct {
	client  *genai.Client
	model   string
	history llm.History
	log     *log.Logger
}

func New(
	ctx context.Context,
	apiKey, model string,
	history llm.History,
	logger *log.Logger,
) (*Provider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Provider{
		client:  client,
		model:   model,
		history: history,
		log:     logger,
	}, nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) generativeModel(systemPrompt string, temperature float32) *genai.GenerativeModel {
	model := p.client.GenerativeModel(p.model)
	model.GenerationConfig.SetTemperature(temperature)
	model.GenerationConfig.SetMaxOutputTokens(1024)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	model.SafetySettings = []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryDangerousContent,
			Threshold: genai.HarmBlockOnlyHigh,
		},
	}
	return model
}

func framePart(frame *video.Frame) genai.Part {
	return genai.ImageData("jpeg", frame.Data)
}

func (p *Provider) Transcribe(ctx context.Context, wav []byte) (string, error) {
	model := p.generativeModel(llm.TranscriptionPrompt, 0)
	resp, err := model.GenerateContent(
		ctx,
		genai.Blob{MIMEType: "audio/wav", Data: wav},
	)
	if err != nil {
		return "", fmt.Errorf("gemini transcription: %w", err)
	}
	return strings.TrimSpace(getResponseText(resp)), nil
}

func (p *Provider) CheckStep(
	ctx context.Context,
	step string,
	current, previous *video.Frame,
) (string, error) {
	model := p.generativeModel(llm.StepCheckPrompt(step), 0.2)
	model.ResponseMIMEType = "application/json"

	var parts []genai.Part
	if previous != nil {
		parts = append(parts, genai.Text("Previous frame:"), framePart(previous))
	}
	parts = append(parts, genai.Text("Current frame:"), framePart(current))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini step check: %w", err)
	}
	return getResponseText(resp), nil
}

func (p *Provider) Caution(ctx context.Context, step string) (string, error) {
	model := p.generativeModel(llm.CautionPrompt, 0.3)
	resp, err := model.GenerateContent(ctx, genai.Text("Recipe step: "+step))
	if err != nil {
		return "", fmt.Errorf("gemini caution: %w", err)
	}
	return getResponseText(resp), nil
}

func (p *Provider) Respond(
	ctx context.Context,
	req *llm.SpeechRequest,
) (<-chan llm.Fragment, error) {
	system := req.SystemPrompt
	if system == "" {
		system = llm.DefaultSystemPrompt
	}
	if sc := llm.SpeechContext(req); sc != "" {
		system += "\n\n" + sc
	}

	chat := p.generativeModel(system, 0.5).StartChat()
	for _, ex := range p.history.Exchanges() {
		chat.History = append(chat.History,
			&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(ex.User)}},
			&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(ex.Assistant)}},
		)
	}

	parts := []genai.Part{genai.Text(req.Text)}
	if req.Frame != nil {
		parts = append(parts, framePart(req.Frame))
	}

	p.log.Debug("respond", "text", req.Text, "history", len(chat.History), "frame", req.Frame != nil)
	stream := chat.SendMessageStream(ctx, parts...)

	result := make(chan llm.Fragment)
	go func() {
		defer close(result)
		for {
			resp, err := stream.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			var fragment llm.Fragment
			if err != nil {
				fragment.Err = fmt.Errorf("error streaming: %w", err)
			} else {
				fragment.Content = getResponseText(resp)
			}
			select {
			case result <- fragment:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	return result, nil
}

func getResponseText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
