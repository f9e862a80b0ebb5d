package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an ephemeral, in-process VectorStore. It is built fresh for
// a single request's documents, queried within that request, and discarded
// afterwards — nothing is persisted. Safe for concurrent use, though a
// request-scoped store is normally touched by one goroutine at a time.
type MemoryStore struct {
	mu sync.RWMutex

	// dim is the established vector dimension. Zero until the first
	// successful Upsert fixes it; all later batches must agree.
	dim int

	docs    []Document
	vectors [][]float32
}

// NewMemoryStore constructs an empty ephemeral store. dim pre-establishes
// the expected vector dimension; pass 0 to let the first Upsert fix it.
func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{dim: dim}
}

// Upsert appends a batch of documents. The whole batch is validated before
// anything is stored, so a dimension mismatch leaves the store unchanged.
func (s *MemoryStore) Upsert(_ context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("memory store: %d docs but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	if dim == 0 {
		dim = len(embeddings[0])
	}
	for i, vec := range embeddings {
		if len(vec) != dim {
			return fmt.Errorf("memory store: entry %d has dimension %d, store established %d: %w",
				i, len(vec), dim, ErrDimensionMismatch)
		}
	}

	s.dim = dim
	s.docs = append(s.docs, docs...)
	s.vectors = append(s.vectors, embeddings...)
	return nil
}

// Search ranks all entries by cosine similarity to the query embedding and
// returns the top k. An empty store returns an empty slice.
func (s *MemoryStore) Search(_ context.Context, queryEmbedding []float32, k int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.docs) == 0 || k <= 0 {
		return nil, nil
	}

	type scored struct {
		idx   int
		score float32
	}
	results := make([]scored, 0, len(s.docs))
	for i, vec := range s.vectors {
		results = append(results, scored{idx: i, score: cosine(queryEmbedding, vec)})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	if k > len(results) {
		k = len(results)
	}
	out := make([]Document, 0, k)
	for _, r := range results[:k] {
		doc := s.docs[r.idx]
		doc.Score = r.score
		out = append(out, doc)
	}
	return out, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Close discards all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	s.vectors = nil
	return nil
}

// cosine returns the cosine similarity of a and b, or 0 when either vector
// is zero-length or zero-magnitude.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
