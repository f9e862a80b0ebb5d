package rag

import (
	"context"
	"errors"
	"testing"
)

// stubEmbedder returns a fixed vector for every input.
type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

// stubQueryEmbedder tracks which embedding path retrieval took.
type stubQueryEmbedder struct {
	stubEmbedder
	queryCalls int
	batchCalls int
}

func (s *stubQueryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.batchCalls++
	return s.stubEmbedder.Embed(ctx, texts)
}

func (s *stubQueryEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	s.queryCalls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

// stubReranker reverses the candidate order, or fails.
type stubReranker struct {
	err    error
	called bool
}

func (s *stubReranker) Rerank(_ context.Context, _ string, candidates []Document, k int) ([]Document, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Document, len(candidates))
	for i, d := range candidates {
		out[len(candidates)-1-i] = d
	}
	if k < len(out) {
		out = out[:k]
	}
	return out, nil
}

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(0)
	docs := []Document{
		{ID: "x", Content: "xray"},
		{ID: "y", Content: "yankee"},
	}
	vecs := [][]float32{
		{1, 0},
		{0.5, 0.5},
	}
	if err := s.Upsert(context.Background(), docs, vecs); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRetrieve_SimilarityOrder(t *testing.T) {
	t.Parallel()
	r, err := NewRetriever(&stubEmbedder{vec: []float32{1, 0}}, seededStore(t), 5)
	if err != nil {
		t.Fatal(err)
	}
	docs, err := r.Retrieve(context.Background(), "short", 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "x" {
		t.Errorf("expected x first, got %+v", docs)
	}
}

func TestRetrieve_PrefersQueryEmbedding(t *testing.T) {
	t.Parallel()
	emb := &stubQueryEmbedder{stubEmbedder: stubEmbedder{vec: []float32{1, 0}}}
	r, err := NewRetriever(emb, seededStore(t), 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Retrieve(context.Background(), "short", 2); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if emb.queryCalls != 1 || emb.batchCalls != 0 {
		t.Errorf("query path not taken: queryCalls=%d batchCalls=%d", emb.queryCalls, emb.batchCalls)
	}
}

func TestRetrieve_RerankApplied(t *testing.T) {
	t.Parallel()
	rr := &stubReranker{}
	r, err := NewRetriever(&stubEmbedder{vec: []float32{1, 0}}, seededStore(t), 5,
		WithReranker(rr, RerankPolicy{Always: true}))
	if err != nil {
		t.Fatal(err)
	}
	docs, err := r.Retrieve(context.Background(), "anything", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !rr.called {
		t.Fatal("reranker was not invoked")
	}
	if docs[0].ID != "y" {
		t.Errorf("expected reranked order with y first, got %+v", docs)
	}
}

func TestRetrieve_RerankFailureDegrades(t *testing.T) {
	t.Parallel()
	rr := &stubReranker{err: errors.New("model down")}
	r, err := NewRetriever(&stubEmbedder{vec: []float32{1, 0}}, seededStore(t), 5,
		WithReranker(rr, RerankPolicy{Always: true}))
	if err != nil {
		t.Fatal(err)
	}
	docs, err := r.Retrieve(context.Background(), "anything", 2)
	if err != nil {
		t.Fatalf("rerank failure must not fail retrieval: %v", err)
	}
	if docs[0].ID != "x" {
		t.Errorf("expected similarity order preserved, got %+v", docs)
	}
}

func TestRetrieve_PolicyGatesReranker(t *testing.T) {
	t.Parallel()
	rr := &stubReranker{}
	r, err := NewRetriever(&stubEmbedder{vec: []float32{1, 0}}, seededStore(t), 5,
		WithReranker(rr, RerankPolicy{MinWords: 50}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Retrieve(context.Background(), "short question", 2); err != nil {
		t.Fatal(err)
	}
	if rr.called {
		t.Error("reranker invoked despite policy not firing")
	}
}

func TestRetrieve_EmbedError(t *testing.T) {
	t.Parallel()
	r, err := NewRetriever(&stubEmbedder{err: errors.New("boom")}, seededStore(t), 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Retrieve(context.Background(), "q", 2); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestNewRetriever_NilDeps(t *testing.T) {
	t.Parallel()
	if _, err := NewRetriever(nil, NewMemoryStore(0), 5); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&stubEmbedder{}, nil, 5); err == nil {
		t.Error("expected error for nil store")
	}
}
