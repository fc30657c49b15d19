package extract

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv"

	"github.com/davidemeka/ragserve/internal/core"
)

// DocconvOCR runs image uploads through docconv's tesseract-backed
// conversion path.
type DocconvOCR struct{}

func NewDocconvOCR() *DocconvOCR { return &DocconvOCR{} }

func (o *DocconvOCR) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		return "", fmt.Errorf("docconv ocr: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return res.Body, nil
}

var _ core.OCR = (*DocconvOCR)(nil)
