package transcriber

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

type openAIWhisper struct {
	client *openai.Client
	log    zerolog.Logger
}

func NewOpenAIWhisper(client *openai.Client, logger zerolog.Logger) Transcriber {
	return &openAIWhisper{client: client, log: logger}
}

func (o *openAIWhisper) Transcribe(ctx context.Context, audio io.Reader, fileExtension string, prompt string) (string, error) {
	startTime := time.Now()
	req := openai.AudioRequest{
		Model:  "whisper-1",
		Reader: audio,
		// The API only needs the extension off this path to pick a decoder.
		FilePath: fmt.Sprintf("recording.%s", fileExtension),
		// Previous words improve accuracy; Whisper keeps the last 244 tokens.
		Prompt: prompt,
	}

	o.log.Debug().Str("model", req.Model).Str("prompt", prompt).Msg("create transcription request")
	resp, err := o.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("cannot create transcription %w", err)
	}

	o.log.Debug().Str("transcription", resp.Text).Dur("time_elapsed", time.Since(startTime)).Msg("received transcription")
	return resp.Text, nil
}
