package app

import (
	"context"
	"fmt"
	"log"

	"github.com/davidemeka/ragserve/internal/config"
	"github.com/davidemeka/ragserve/internal/core"
	"github.com/davidemeka/ragserve/internal/core/chunker"
	"github.com/davidemeka/ragserve/internal/core/embed"
	"github.com/davidemeka/ragserve/internal/core/extract"
	"github.com/davidemeka/ragserve/internal/core/index"
	"github.com/davidemeka/ragserve/internal/core/ingest"
	"github.com/davidemeka/ragserve/internal/core/llm"
	"github.com/davidemeka/ragserve/internal/core/objectstore"
	"github.com/davidemeka/ragserve/internal/core/rag"
)

// App owns the long-lived services: the vector index, the embedding gateway
// and the orchestrators built on top of them. Everything is constructed once
// here and shared by reference.
type App struct {
	Index    *index.Index
	Ingestor *ingest.Ingestor
	Pipeline *rag.Pipeline
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	uploads, processed, err := buildStores(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}
	log.Printf("Object store ready (%s backend).", cfg.StorageBackend)

	idx := index.LoadOrEmpty(cfg.IndexPath)

	embedder := embed.GatewayFromConfig(cfg)

	var transcriber core.Transcriber
	if cfg.TranscribeModel != "" && cfg.OpenAIAPIKey != "" {
		transcriber = extract.NewWhisperTranscriber(cfg.OpenAIAPIKey, cfg.TranscribeModel)
	} else {
		log.Println("No transcription backend configured; audio uploads will be rejected.")
	}

	dispatcher := extract.NewDispatcher(extract.NewDocconvOCR(), transcriber, processed)
	splitter := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)

	ingestor := ingest.NewIngestor(dispatcher, splitter, embedder, idx, uploads)
	pipeline := rag.NewPipeline(embedder, idx, llm.NewGateway(cfg))

	server := NewServer(cfg, ingestor, pipeline)

	return &App{Index: idx, Ingestor: ingestor, Pipeline: pipeline, Server: server}, nil
}

// buildStores returns the raw-upload and processed-text archives. The local
// backend uses two directories; the s3 backend shares one bucket under key
// prefixes.
func buildStores(ctx context.Context, cfg *config.Config) (core.ObjectStore, core.ObjectStore, error) {
	switch cfg.StorageBackend {
	case "local", "":
		uploads, err := objectstore.NewLocalStore(cfg.UploadsDir)
		if err != nil {
			return nil, nil, err
		}
		processed, err := objectstore.NewLocalStore(cfg.ProcessedDir)
		if err != nil {
			return nil, nil, err
		}
		return uploads, processed, nil
	case "s3":
		s3store, err := objectstore.NewS3Store(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return objectstore.WithPrefix(s3store, "uploaded_files/"),
			objectstore.WithPrefix(s3store, "processed_files/"), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
