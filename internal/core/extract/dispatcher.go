package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/google/uuid"

	"github.com/davidemeka/ragserve/internal/core"
	"github.com/davidemeka/ragserve/internal/models"
)

// ErrModelUnavailable is returned for audio uploads when no transcription
// backend is configured. Audio is never silently skipped.
var ErrModelUnavailable = errors.New("transcription model unavailable")

type handlerFunc func(ctx context.Context, doc *models.SourceDocument) ([]models.ExtractedUnit, error)

// Dispatcher maps a document's kind to an extraction strategy and archives
// the flattened processed text of every successful extraction.
type Dispatcher struct {
	ocr         core.OCR
	transcriber core.Transcriber
	processed   core.ObjectStore
	handlers    map[models.DocumentKind]handlerFunc
}

// NewDispatcher wires the extraction strategies. ocr and transcriber may be
// nil: images then yield zero units, audio becomes a hard error.
func NewDispatcher(ocr core.OCR, transcriber core.Transcriber, processed core.ObjectStore) *Dispatcher {
	d := &Dispatcher{ocr: ocr, transcriber: transcriber, processed: processed}
	d.handlers = map[models.DocumentKind]handlerFunc{
		models.KindPlainText: d.convertGeneric,
		models.KindPDF:       d.convertGeneric,
		models.KindDocx:      d.convertGeneric,
		models.KindHTML:      d.convertGeneric,
		models.KindUnknown:   d.convertGeneric,
		models.KindCSV:       d.extractCSV,
		models.KindImage:     d.extractImage,
		models.KindAudio:     d.extractAudio,
	}
	return d
}

// Extract produces the normalized text units for one document. Zero units
// with a nil error means the document carried no extractable content.
func (d *Dispatcher) Extract(ctx context.Context, doc *models.SourceDocument) ([]models.ExtractedUnit, error) {
	h, ok := d.handlers[doc.Kind]
	if !ok {
		h = d.convertGeneric
	}

	units, err := h(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		log.Printf("extract: no content extracted from %s", doc.Filename)
		return nil, nil
	}

	// Archive the flattened text of all units as one processed-text record.
	// Failure here does not fail the extraction, only the audit copy.
	texts := make([]string, len(units))
	for i := range units {
		texts[i] = units[i].Text
	}
	key, err := d.archiveProcessed(ctx, strings.Join(texts, "\n\n"), doc.Filename)
	if err != nil {
		log.Printf("extract: archiving processed text for %s failed: %v", doc.Filename, err)
	} else {
		for i := range units {
			units[i].ProcessedPath = key
		}
	}

	return units, nil
}

// archiveProcessed writes text under "<stem>_<8 hex>.txt" so repeated uploads
// of the same filename never collide.
func (d *Dispatcher) archiveProcessed(ctx context.Context, text, filename string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	key := fmt.Sprintf("%s_%s.txt", stem, suffix)

	if err := d.processed.Put(ctx, key, []byte(text), "text/plain; charset=utf-8"); err != nil {
		return "", err
	}
	return key, nil
}

// convertGeneric handles every text-bearing format through docconv, which
// dispatches on the mime type derived from the filename.
func (d *Dispatcher) convertGeneric(ctx context.Context, doc *models.SourceDocument) ([]models.ExtractedUnit, error) {
	mimeType := docconv.MimeTypeByExtension(doc.Filename)

	res, err := docconv.Convert(bytes.NewReader(doc.Data), mimeType, false)
	if err != nil {
		return nil, fmt.Errorf("convert %s (%s): %w", doc.Filename, mimeType, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(res.Body)
	if text == "" {
		return nil, nil
	}

	return []models.ExtractedUnit{{
		SourceID: doc.ID,
		Text:     text,
		Source:   doc.Filename,
	}}, nil
}

// extractCSV yields one unit per record, rendered as "header: value" lines to
// keep column context attached to every row.
func (d *Dispatcher) extractCSV(_ context.Context, doc *models.SourceDocument) ([]models.ExtractedUnit, error) {
	reader := csv.NewReader(bytes.NewReader(doc.Data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", doc.Filename, err)
	}

	var units []models.ExtractedUnit
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv %s: %w", doc.Filename, err)
		}

		var b strings.Builder
		for i, field := range record {
			if i < len(header) {
				b.WriteString(header[i])
				b.WriteString(": ")
			}
			b.WriteString(field)
			b.WriteString("\n")
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		units = append(units, models.ExtractedUnit{
			SourceID: doc.ID,
			Text:     text,
			Source:   doc.Filename,
		})
	}
	return units, nil
}

func (d *Dispatcher) extractImage(ctx context.Context, doc *models.SourceDocument) ([]models.ExtractedUnit, error) {
	if d.ocr == nil {
		log.Printf("extract: no OCR engine configured, skipping image %s", doc.Filename)
		return nil, nil
	}

	text, err := d.ocr.Recognize(ctx, doc.Data, docconv.MimeTypeByExtension(doc.Filename))
	if err != nil {
		return nil, fmt.Errorf("ocr %s: %w", doc.Filename, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		log.Printf("extract: no text found in image %s", doc.Filename)
		return nil, nil
	}

	return []models.ExtractedUnit{{
		SourceID: doc.ID,
		Text:     text,
		Source:   doc.Filename,
	}}, nil
}

func (d *Dispatcher) extractAudio(ctx context.Context, doc *models.SourceDocument) ([]models.ExtractedUnit, error) {
	if d.transcriber == nil {
		return nil, fmt.Errorf("transcribe %s: %w", doc.Filename, ErrModelUnavailable)
	}

	text, err := d.transcriber.Transcribe(ctx, doc.Filename, doc.Data)
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", doc.Filename, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		log.Printf("extract: no text transcribed from audio %s", doc.Filename)
		return nil, nil
	}

	return []models.ExtractedUnit{{
		SourceID: doc.ID,
		Text:     text,
		Source:   doc.Filename,
	}}, nil
}
