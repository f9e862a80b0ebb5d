package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/docqa/docqa-go/internal/cache"
	"github.com/docqa/docqa-go/internal/chunker"
	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/rag"
)

// stubEmbedder returns a fixed-dimension vector per input. When dims is set,
// the i-th text of each batch gets dims[i%len(dims)] dimensions, which lets
// tests force a dimension mismatch.
type stubEmbedder struct {
	dims []int
	err  error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		dim := 3
		if len(e.dims) > 0 {
			dim = e.dims[i%len(e.dims)]
		}
		vec := make([]float32, dim)
		vec[0] = float32(len(texts[i])%7) + 1
		for j := 1; j < dim; j++ {
			vec[j] = 1
		}
		out[i] = vec
	}
	return out, nil
}

// stubModel is a canned chat model. With echo set it replies with the user
// message so tests can verify question-to-answer alignment.
type stubModel struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
	echo  bool
}

func (m *stubModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.echo {
		return schema.AssistantMessage(in[len(in)-1].Content, nil), nil
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *stubModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (m *stubModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func (m *stubModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestPipeline(t *testing.T, emb rag.Embedder, chat model.ToolCallingChatModel, opts Options) *Pipeline {
	t.Helper()
	if opts.DefaultModel == "" {
		opts.DefaultModel = "test-model"
	}
	p, err := New(Deps{
		Loader:    extract.NewLoader(),
		Chunker:   chunker.New(0, 0),
		Embedder:  emb,
		ChatModel: chat,
		Cache:     cache.New(16, 0),
		Registry:  prometheus.NewRegistry(),
	}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func txtSource(id, text string) extract.Source {
	return extract.Source{ID: id, Name: id, Data: []byte(text)}
}

func TestRun_AnswersFromUploadedDocument(t *testing.T) {
	t.Parallel()
	chat := &stubModel{reply: "The port is 8080."}
	p := newTestPipeline(t, &stubEmbedder{}, chat, Options{})

	got, err := p.Run(context.Background(), Query{
		Sources:   []extract.Source{txtSource("svc.txt", "The service listens on port 8080 by default.")},
		Questions: []string{"What port does the service use?"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d answers, want 1", len(got))
	}
	a := got[0]
	if a.Text != "The port is 8080." {
		t.Errorf("Text = %q", a.Text)
	}
	if a.CacheHit {
		t.Error("first run should not be a cache hit")
	}
	if a.Model != "test-model" {
		t.Errorf("Model = %q", a.Model)
	}
	if len(a.Sources) != 1 || a.Sources[0] != "svc.txt" {
		t.Errorf("Sources = %v, want [svc.txt]", a.Sources)
	}
	if len(a.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", a.Warnings)
	}
}

func TestRun_MultiQuestionAlignment(t *testing.T) {
	t.Parallel()
	chat := &stubModel{echo: true}
	p := newTestPipeline(t, &stubEmbedder{}, chat, Options{QuestionConcurrency: 2})

	questions := []string{
		"What colour is the widget?",
		"How heavy is the widget?",
		"Where is the widget made?",
	}
	got, err := p.Run(context.Background(), Query{
		Sources:   []extract.Source{txtSource("widget.txt", "The widget is blue, weighs 2kg, and is made in Oslo.")},
		Questions: questions,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != len(questions) {
		t.Fatalf("got %d answers, want %d", len(got), len(questions))
	}
	for i, q := range questions {
		if !strings.Contains(got[i].Text, q) {
			t.Errorf("answer %d does not correspond to question %q: %q", i, q, got[i].Text)
		}
	}
}

func TestRun_PartialIngestFailureIsWarning(t *testing.T) {
	t.Parallel()
	chat := &stubModel{reply: "Fine."}
	p := newTestPipeline(t, &stubEmbedder{}, chat, Options{})

	got, err := p.Run(context.Background(), Query{
		Sources: []extract.Source{
			txtSource("good.txt", "Some usable content."),
			{ID: "bad.png", Name: "bad.png", Data: []byte{0x89, 0x50}},
		},
		Questions: []string{"anything?"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got[0].Warnings) != 1 || !strings.Contains(got[0].Warnings[0], "bad.png") {
		t.Errorf("Warnings = %v, want one naming bad.png", got[0].Warnings)
	}
}

func TestRun_AllIngestFailuresFail(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &stubEmbedder{}, &stubModel{reply: "x"}, Options{})

	_, err := p.Run(context.Background(), Query{
		Sources:   []extract.Source{{ID: "bad.png", Name: "bad.png", Data: []byte{1}}},
		Questions: []string{"anything?"},
	})
	if err == nil {
		t.Fatal("expected error when every document fails ingestion")
	}
	if !strings.Contains(err.Error(), "failed ingestion") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_DimensionMismatchFails(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &stubEmbedder{dims: []int{3, 4}}, &stubModel{reply: "x"}, Options{})

	_, err := p.Run(context.Background(), Query{
		Sources: []extract.Source{
			txtSource("a.txt", "first document"),
			txtSource("b.txt", "second document"),
		},
		Questions: []string{"anything?"},
	})
	if !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestRun_NoDocumentsNoPersistentStore(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &stubEmbedder{}, &stubModel{reply: "x"}, Options{})

	_, err := p.Run(context.Background(), Query{Questions: []string{"anything?"}})
	if err == nil || !strings.Contains(err.Error(), "no persistent store") {
		t.Fatalf("err = %v, want persistent store error", err)
	}
}

func TestRun_EmptyRetrievalSignalsNoContext(t *testing.T) {
	t.Parallel()
	chat := &stubModel{echo: true}
	p, err := New(Deps{
		Loader:     extract.NewLoader(),
		Chunker:    chunker.New(0, 0),
		Embedder:   &stubEmbedder{},
		ChatModel:  chat,
		Persistent: rag.NewMemoryStore(0),
		Cache:      cache.New(16, 0),
		Registry:   prometheus.NewRegistry(),
	}, Options{DefaultModel: "test-model"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// No documents attached and the standing store is empty, so retrieval
	// returns nothing and the prompt must carry the no-context marker.
	got, err := p.Run(context.Background(), Query{Questions: []string{"What is the refund policy?"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d answers, want 1", len(got))
	}
	if !strings.Contains(got[0].Text, noContextMarker) {
		t.Errorf("prompt sent to the model lacks the no-context marker:\n%s", got[0].Text)
	}
	if !strings.Contains(got[0].Text, "What is the refund policy?") {
		t.Errorf("prompt sent to the model lacks the question:\n%s", got[0].Text)
	}
	if len(got[0].Sources) != 0 {
		t.Errorf("Sources = %v, want none for an empty retrieval", got[0].Sources)
	}
}

func TestRun_NoQuestions(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &stubEmbedder{}, &stubModel{reply: "x"}, Options{})

	_, err := p.Run(context.Background(), Query{
		Sources: []extract.Source{txtSource("a.txt", "content")},
	})
	if err == nil || !strings.Contains(err.Error(), "no questions") {
		t.Fatalf("err = %v, want no questions error", err)
	}
}

func TestRun_TemperatureOutOfRange(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, &stubEmbedder{}, &stubModel{reply: "x"}, Options{})

	temp := float32(1.5)
	_, err := p.Run(context.Background(), Query{
		Sources:     []extract.Source{txtSource("a.txt", "content")},
		Questions:   []string{"anything?"},
		Temperature: &temp,
	})
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("err = %v, want temperature range error", err)
	}
}

func TestRun_CacheHitSkipsGeneration(t *testing.T) {
	t.Parallel()
	chat := &stubModel{reply: "Cached answer."}
	p := newTestPipeline(t, &stubEmbedder{}, chat, Options{})

	q := Query{
		Sources:   []extract.Source{txtSource("a.txt", "stable content")},
		Questions: []string{"What is in the document?"},
	}
	first, err := p.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := p.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first[0].CacheHit {
		t.Error("first answer should be a miss")
	}
	if !second[0].CacheHit {
		t.Error("second answer should be a cache hit")
	}
	if got := chat.callCount(); got != 1 {
		t.Errorf("model called %d times, want 1", got)
	}
}

func TestRun_GenerationFailureRetriedThenFails(t *testing.T) {
	t.Parallel()
	chat := &stubModel{err: errors.New("upstream exploded")}
	p := newTestPipeline(t, &stubEmbedder{}, chat, Options{MaxAttempts: 2})

	_, err := p.Run(context.Background(), Query{
		Sources:   []extract.Source{txtSource("a.txt", "content")},
		Questions: []string{"anything?"},
	})
	if !errors.Is(err, rag.ErrCompletionFailure) {
		t.Fatalf("err = %v, want ErrCompletionFailure", err)
	}
	if got := chat.callCount(); got != 2 {
		t.Errorf("model called %d times, want 2", got)
	}
}

func TestRun_FailedGenerationNotCached(t *testing.T) {
	t.Parallel()
	chat := &stubModel{err: errors.New("boom")}
	p := newTestPipeline(t, &stubEmbedder{}, chat, Options{MaxAttempts: 1})

	q := Query{
		Sources:   []extract.Source{txtSource("a.txt", "content")},
		Questions: []string{"anything?"},
	}
	if _, err := p.Run(context.Background(), q); err == nil {
		t.Fatal("expected failure")
	}

	chat.mu.Lock()
	chat.err = nil
	chat.reply = "Recovered."
	chat.mu.Unlock()

	got, err := p.Run(context.Background(), q)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got[0].CacheHit {
		t.Error("failed computation must not populate the cache")
	}
	if got[0].Text != "Recovered." {
		t.Errorf("Text = %q", got[0].Text)
	}
}

func TestClassifyModelErr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"429 status", errors.New("request failed: 429"), rag.ErrRateLimited},
		{"rate limit text", errors.New("upstream rate limit exceeded"), rag.ErrRateLimited},
		{"generic", errors.New("connection reset"), rag.ErrCompletionFailure},
		{"already classified", rag.ErrRateLimited, rag.ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyModelErr(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classifyModelErr(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestUniqueSources(t *testing.T) {
	t.Parallel()
	chunks := []rag.Document{
		{Source: "b.pdf"}, {Source: "a.txt"}, {Source: "b.pdf"}, {Source: "c.txt"},
	}
	got := uniqueSources(chunks)
	want := []string{"b.pdf", "a.txt", "c.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
