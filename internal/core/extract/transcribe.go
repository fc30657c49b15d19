package extract

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/davidemeka/ragserve/internal/core"
)

// WhisperTranscriber transcribes audio through the OpenAI audio API.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

func NewWhisperTranscriber(apiKey, model string) *WhisperTranscriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{client: openai.NewClient(apiKey), model: model}
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, filename string, data []byte) (string, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filename,
		Reader:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	return resp.Text, nil
}

var _ core.Transcriber = (*WhisperTranscriber)(nil)
