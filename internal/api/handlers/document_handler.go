package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/davidemeka/ragserve/internal/core/extract"
	"github.com/davidemeka/ragserve/internal/models"
)

// Ingestor runs one upload batch through the ingestion pipeline.
type Ingestor interface {
	Ingest(ctx context.Context, docs []models.SourceDocument) models.IngestionReport
}

type DocumentHandler struct {
	ingestor Ingestor
}

func NewDocumentHandler(ing Ingestor) *DocumentHandler {
	return &DocumentHandler{ingestor: ing}
}

// UploadDocuments accepts one or more files in a multipart form and returns
// the ingestion report for the batch.
func (h *DocumentHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "no files provided", http.StatusBadRequest)
		return
	}

	var docs []models.SourceDocument
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			http.Error(w, "reading upload failed", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "reading upload failed", http.StatusBadRequest)
			return
		}

		filename := filepath.Base(header.Filename)
		docs = append(docs, models.SourceDocument{
			ID:       uuid.NewString(),
			Filename: filename,
			Kind:     extract.KindFromFilename(filename),
			Data:     data,
		})
	}

	report := h.ingestor.Ingest(r.Context(), docs)

	status := http.StatusOK
	if report.IndexError != "" {
		status = http.StatusInternalServerError
	} else if report.Succeeded == 0 && len(report.Failed) > 0 {
		status = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		log.Printf("handlers: encoding ingestion report failed: %v", err)
	}
}
