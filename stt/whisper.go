package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/sashabaranov/go-openai"
)

type WhisperClient struct {
	client *openai.Client
	logger *log.Logger
}

func NewWhisperClient(apiKey string, logger *log.Logger) *WhisperClient {
	return &WhisperClient{
		client: openai.NewClient(apiKey),
		logger: logger,
	}
}

func (c *WhisperClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	c.logger.Debug("transcribed", "bytes", len(wav), "text", text)
	return text, nil
}
