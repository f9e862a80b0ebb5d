package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docqa/docqa-go/internal/logging"
)

// DefaultRetriever implements Retriever by combining an Embedder and a
// VectorStore, with an optional conditional Reranker second pass. It embeds
// the question at retrieval time, delegates similarity search to the store,
// and re-orders the candidates when the rerank policy fires.
type DefaultRetriever struct {
	embedder Embedder
	store    VectorStore

	// reranker is the optional cross-encoding second pass. Nil disables
	// reranking entirely.
	reranker Reranker

	// rerankPolicy decides per question whether the reranker's extra
	// latency is justified. Ignored when reranker is nil.
	rerankPolicy RerankPolicy

	// defaultTopK is the number of results returned when the caller passes 0.
	defaultTopK int
}

// RetrieverOption configures a DefaultRetriever.
type RetrieverOption func(*DefaultRetriever)

// WithReranker attaches a reranker gated by the given policy.
func WithReranker(r Reranker, policy RerankPolicy) RetrieverOption {
	return func(dr *DefaultRetriever) {
		dr.reranker = r
		dr.rerankPolicy = policy
	}
}

// NewRetriever constructs a DefaultRetriever from the given Embedder and
// VectorStore. defaultTopK sets the fallback result count for Retrieve(.., 0).
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int, opts ...RetrieverOption) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	dr := &DefaultRetriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}
	for _, opt := range opts {
		opt(dr)
	}
	return dr, nil
}

// Retrieve embeds the question, searches the store, and conditionally
// reranks. A rerank failure degrades to the similarity ordering rather than
// failing the retrieval.
func (r *DefaultRetriever) Retrieve(ctx context.Context, question string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	vec, err := r.embedQuestion(ctx, question)
	if err != nil {
		return nil, err
	}

	docs, err := r.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	if r.reranker == nil || len(docs) == 0 || !r.rerankPolicy.ShouldRerank(question) {
		return docs, nil
	}

	reranked, err := r.reranker.Rerank(ctx, question, docs, topK)
	if err != nil {
		logging.FromContext(ctx).Warn("rag: rerank failed, keeping similarity order",
			slog.Any("error", err),
		)
		return docs, nil
	}
	return reranked, nil
}

// embedQuestion produces the search vector, preferring the query-specific
// path for asymmetric embedding models.
func (r *DefaultRetriever) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	if qe, ok := r.embedder.(QueryEmbedder); ok {
		vec, err := qe.EmbedQuery(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("rag: embedding question failed: %w", err)
		}
		return vec, nil
	}
	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding question failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for question")
	}
	return embeddings[0], nil
}
