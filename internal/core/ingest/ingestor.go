package ingest

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/davidemeka/ragserve/internal/core"
	"github.com/davidemeka/ragserve/internal/core/extract"
	"github.com/davidemeka/ragserve/internal/core/index"
	"github.com/davidemeka/ragserve/internal/models"
)

// Extractor produces normalized text units for one document.
type Extractor interface {
	Extract(ctx context.Context, doc *models.SourceDocument) ([]models.ExtractedUnit, error)
}

// Chunker splits extracted units into retrievable chunks.
type Chunker interface {
	Split(units []models.ExtractedUnit) []models.Chunk
}

// Indexer is the write side of the vector index.
type Indexer interface {
	Append(entries []index.Entry) error
}

// Ingestor drives extraction, chunking, embedding and the index write for
// one upload batch. Documents are extracted concurrently; the embed and
// append of the combined batch is a single serialized step at the end so the
// expensive persistence happens once per upload call.
type Ingestor struct {
	extractor   Extractor
	chunker     Chunker
	embedder    core.EmbeddingProvider
	index       Indexer
	uploads     core.ObjectStore
	concurrency int
}

func NewIngestor(extractor Extractor, chunker Chunker, embedder core.EmbeddingProvider, idx Indexer, uploads core.ObjectStore) *Ingestor {
	return &Ingestor{
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		index:       idx,
		uploads:     uploads,
		concurrency: 4,
	}
}

type docResult struct {
	filename   string
	chunks     []models.Chunk
	failReason string
}

// Ingest processes every document in the batch; one document's failure never
// aborts the others. The report lists per-document failures, and IndexError
// separately when extraction succeeded but the combined index update failed.
func (ing *Ingestor) Ingest(ctx context.Context, docs []models.SourceDocument) models.IngestionReport {
	results := make([]docResult, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)
	for i := range docs {
		g.Go(func() error {
			results[i] = ing.processOne(gctx, &docs[i])
			return nil
		})
	}
	_ = g.Wait()

	var report models.IngestionReport
	var chunks []models.Chunk
	sources := make(map[string]string) // source ID -> filename
	extracted := 0
	for i := range results {
		if results[i].failReason != "" {
			report.Failed = append(report.Failed, models.FailedDocument{
				Filename: results[i].filename,
				Reason:   results[i].failReason,
			})
			continue
		}
		extracted++
		chunks = append(chunks, results[i].chunks...)
		sources[docs[i].ID] = docs[i].Filename
	}

	if len(chunks) == 0 {
		return report
	}

	// One combined embed + append for the whole batch.
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := ing.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		report.IndexError = fmt.Sprintf("%d document(s) extracted but embedding failed: %v", extracted, err)
		return report
	}

	entries := make([]index.Entry, len(chunks))
	for i := range chunks {
		entries[i] = index.Entry{
			Vector: vectors[i],
			Text:   chunks[i].Text,
			Metadata: map[string]string{
				"source": sources[chunks[i].SourceID],
				"seq":    strconv.Itoa(chunks[i].Seq),
			},
		}
	}

	if err := ing.index.Append(entries); err != nil {
		report.IndexError = fmt.Sprintf("%d document(s) extracted but index update failed: %v", extracted, err)
		return report
	}

	report.Succeeded = extracted
	log.Printf("ingest: indexed %d chunks from %d document(s)", len(chunks), extracted)
	return report
}

// processOne archives the raw upload, extracts and chunks one document.
// Failed extractions delete the archived raw bytes so no orphaned uploads
// remain.
func (ing *Ingestor) processOne(ctx context.Context, doc *models.SourceDocument) docResult {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Kind == "" {
		doc.Kind = extract.KindFromFilename(doc.Filename)
	}

	res := docResult{filename: doc.Filename}

	rawKey := doc.ID + "/" + filepath.Base(doc.Filename)
	if err := ing.uploads.Put(ctx, rawKey, doc.Data, "application/octet-stream"); err != nil {
		res.failReason = fmt.Sprintf("archiving upload failed: %v", err)
		return res
	}

	units, err := ing.extractor.Extract(ctx, doc)
	if err != nil {
		if derr := ing.uploads.Delete(ctx, rawKey); derr != nil {
			log.Printf("ingest: cleanup of %s failed: %v", rawKey, derr)
		}
		res.failReason = fmt.Sprintf("extraction failed: %v", err)
		return res
	}
	if len(units) == 0 {
		if derr := ing.uploads.Delete(ctx, rawKey); derr != nil {
			log.Printf("ingest: cleanup of %s failed: %v", rawKey, derr)
		}
		res.failReason = "no content extracted"
		return res
	}

	res.chunks = ing.chunker.Split(units)
	if len(res.chunks) == 0 {
		if derr := ing.uploads.Delete(ctx, rawKey); derr != nil {
			log.Printf("ingest: cleanup of %s failed: %v", rawKey, derr)
		}
		res.failReason = "no content extracted"
	}
	return res
}
