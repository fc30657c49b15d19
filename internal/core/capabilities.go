package core

import "context"

// OCR extracts text from an image. An empty result is valid: it means the
// image carried no recognizable text.
type OCR interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Transcriber converts audio bytes into text. The filename hint carries the
// container format (mp3, wav, ...) for backends that need it.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, data []byte) (string, error)
}
