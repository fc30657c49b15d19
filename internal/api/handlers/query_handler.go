package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davidemeka/ragserve/internal/core/llm"
	"github.com/davidemeka/ragserve/internal/core/rag"
)

// Answerer runs one query through the retrieval-augmented pipeline.
type Answerer interface {
	Answer(ctx context.Context, query, model, apiKey string) (string, error)
}

type QueryHandler struct {
	pipeline     Answerer
	defaultModel string
}

func NewQueryHandler(pipeline Answerer, defaultModel string) *QueryHandler {
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &QueryHandler{pipeline: pipeline, defaultModel: defaultModel}
}

type queryRequest struct {
	Query     string `json:"query"`
	ModelName string `json:"model_name"`
	APIKey    string `json:"api_key"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}
	model := req.ModelName
	if model == "" {
		model = h.defaultModel
	}

	answer, err := h.pipeline.Answer(r.Context(), req.Query, model, req.APIKey)
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrIndexUnavailable):
			http.Error(w, "no documents ingested yet; upload documents first", http.StatusConflict)
		case errors.Is(err, llm.ErrUnsupportedModel), errors.Is(err, llm.ErrMissingCredential):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, fmt.Sprintf("query failed: %v", err), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(queryResponse{Answer: answer})
}
