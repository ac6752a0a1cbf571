package transcriber

import (
	"context"
	"io"
)

// Transcriber is the batch recognition collaborator: it gets the finished
// WAV recording and returns the dictated text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, fileExtension string, prompt string) (string, error)
}
