package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/davidemeka/ragserve/internal/core"
	"github.com/davidemeka/ragserve/internal/core/index"
)

// ErrIndexUnavailable means no document has ever been ingested. Callers
// surface it as "ingest documents first" rather than generating an answer
// from an empty context.
var ErrIndexUnavailable = errors.New("no documents ingested yet")

// DefaultTopK is how many chunks back one answer.
const DefaultTopK = 5

// answerTemplate is the fixed instruction wrapper around retrieved context.
const answerTemplate = `You are a helpful assistant for question-answering tasks.
Be friendly and concise.
Detect the user's input language and respond in the same language throughout the discussion.

For direct questions, provide accurate and concise answers based solely on the following context. If the context does not contain enough information to answer a direct question, respond with "I don't have enough information to answer that question." Do not use external knowledge or make assumptions beyond the provided context for these answers.

For non-question inputs or casual remarks, feel free to engage lightly and conversationally to maintain a friendly tone, but avoid providing information outside the context.

Context: %s

User Input: %s

Answer:`

// Searcher is the read side of the vector index.
type Searcher interface {
	Search(vector []float32, k int) ([]index.Result, error)
	IsInitialized() bool
}

// Generator completes a prompt against a named model.
type Generator interface {
	Complete(ctx context.Context, model, prompt, apiKey string) (string, error)
}

// Pipeline answers queries by retrieving the most similar chunks and
// conditioning a completion on them.
type Pipeline struct {
	embedder core.EmbeddingProvider
	index    Searcher
	llm      Generator
	topK     int
}

func NewPipeline(embedder core.EmbeddingProvider, idx Searcher, llm Generator) *Pipeline {
	return &Pipeline{embedder: embedder, index: idx, llm: llm, topK: DefaultTopK}
}

// Retrieve embeds the query and returns the top-k most similar chunks.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int) ([]index.Result, error) {
	if !p.index.IsInitialized() {
		return nil, ErrIndexUnavailable
	}
	if k <= 0 {
		k = p.topK
	}

	vecs, err := p.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors for one input", len(vecs))
	}

	results, err := p.index.Search(vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return results, nil
}

// assembleContext joins ranked chunk texts with one blank line between them,
// in retrieval order.
func assembleContext(results []index.Result) string {
	texts := make([]string, len(results))
	for i := range results {
		texts[i] = results[i].Text
	}
	return strings.Join(texts, "\n\n")
}

// Answer runs retrieval, context assembly and generation for one query.
func (p *Pipeline) Answer(ctx context.Context, query, model, apiKey string) (string, error) {
	results, err := p.Retrieve(ctx, query, p.topK)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(answerTemplate, assembleContext(results), query)

	answer, err := p.llm.Complete(ctx, model, prompt, apiKey)
	if err != nil {
		return "", err
	}
	log.Printf("rag: answered query with %d context chunks via %s", len(results), model)
	return answer, nil
}
