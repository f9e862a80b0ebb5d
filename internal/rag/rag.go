// Package rag defines the shared types, interfaces, and error taxonomy for
// the retrieval-augmented generation pipeline: vector storage, embedding,
// retrieval, and reranking. Concrete implementations (in-memory, Qdrant,
// HTTP embedders) satisfy these interfaces so the pipeline layer never
// depends on a specific backend.
package rag

import (
	"context"
	"errors"
)

// Pipeline-level error taxonomy. Components return these sentinels (wrapped
// with detail) so the orchestrator can make per-category recovery decisions.
var (
	// ErrUnsupportedFormat reports a document whose extension or MIME type
	// is not one of the loadable formats.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrFetchFailure reports a document that could not be fetched or read
	// (unreachable URL, HTTP error status, corrupt archive).
	ErrFetchFailure = errors.New("document fetch failed")

	// ErrDimensionMismatch reports an embedding whose dimensionality
	// disagrees with the store's established vector size. This is a
	// configuration error, not a transient fault — callers must not retry.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCompletionFailure reports an upstream model error or timeout from
	// the completion capability. Retryable with backoff.
	ErrCompletionFailure = errors.New("completion failed")

	// ErrRateLimited reports upstream throttling (HTTP 429). Retryable
	// with backoff.
	ErrRateLimited = errors.New("rate limited by upstream")
)

// Document is the atomic unit of retrieval: one bounded text window (chunk)
// of a source document, optionally carrying its embedding-time metadata and
// a retrieval-time similarity score.
type Document struct {
	// ID is the unique identifier for this chunk.
	ID string

	// Content is the raw text of the chunk.
	Content string

	// Source is the origin of the document (URL or uploaded filename).
	Source string

	// Page is the 1-based page or section the chunk was extracted from.
	// Zero when the source format has no page structure.
	Page int

	// Ordinal is the chunk's position within its source document.
	Ordinal int

	// Metadata holds arbitrary key-value pairs (format, warnings, etc.).
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores a batch of documents with their pre-computed embeddings.
	// embeddings[i] is the vector for docs[i]. A batch whose vectors do not
	// all match the store's established dimension fails with
	// ErrDimensionMismatch and leaves the store unchanged.
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns up to k entries ranked by descending cosine similarity
	// to the query embedding. Fewer than k are returned when the store holds
	// fewer entries; an empty store yields an empty result, never an error.
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]Document, error)

	// Len reports the number of entries currently held.
	Len(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice, and every vector
	// has the same dimension for a given model configuration.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryEmbedder is the optional extension for asymmetric embedding models
// that distinguish query embeddings from passage embeddings. Retrieval uses
// EmbedQuery for the question when available and falls back to Embed
// otherwise.
type QueryEmbedder interface {
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Reranker re-orders retrieved candidates with a relevance model distinct
// from the embedding similarity metric (a cross-encoding second pass).
type Reranker interface {
	// Rerank returns a re-ordered subsequence of candidates of size ≤ k.
	// A failed rerank call must be treated by callers as "keep the original
	// ordering", never as a request failure.
	Rerank(ctx context.Context, question string, candidates []Document, k int) ([]Document, error)
}

// Retriever is the high-level interface the pipeline uses to fetch relevant
// context for a question. It combines embedding and vector search.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents for the question.
	Retrieve(ctx context.Context, question string, k int) ([]Document, error)
}
