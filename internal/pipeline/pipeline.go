// Package pipeline orchestrates the full question-answering flow: document
// ingestion, chunking, embedding, retrieval, optional reranking, and answer
// generation, with a fingerprint-keyed cache in front of the whole thing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/docqa/docqa-go/internal/answers"
	"github.com/docqa/docqa-go/internal/budget"
	"github.com/docqa/docqa-go/internal/cache"
	"github.com/docqa/docqa-go/internal/chunker"
	"github.com/docqa/docqa-go/internal/extract"
	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
)

// State is one phase of a run. Transitions are linear; any phase may jump to
// StateFailed.
type State string

// Run phases, in order.
const (
	StateReceived   State = "received"
	StateIngesting  State = "ingesting"
	StateIndexing   State = "indexing"
	StateRetrieving State = "retrieving"
	StateReranking  State = "reranking"
	StateGenerating State = "generating"
	StateReturned   State = "returned"
	StateFailed     State = "failed"
)

const (
	// defaultQuestionConcurrency bounds how many questions of one request
	// are answered in parallel.
	defaultQuestionConcurrency = 4

	// defaultMaxAttempts is the number of generation attempts per question
	// before the whole request fails.
	defaultMaxAttempts = 3

	// embedBatchSize is the number of chunks embedded per upstream call
	// during indexing.
	embedBatchSize = 64

	// persistentNamespace is the fingerprint source ID used when a request
	// carries no documents and runs against the standing collection.
	persistentNamespace = "persistent"
)

// Query is one answering request. When Sources is empty the request runs
// against the persistent store.
type Query struct {
	// Sources are the documents to ingest for this request. They are
	// indexed into an ephemeral store discarded when the request ends.
	Sources []extract.Source

	// Questions to answer. All questions share one ingestion pass.
	Questions []string

	// Model overrides the configured model for this request. Empty uses
	// the default.
	Model string

	// Temperature overrides the configured sampling temperature. Nil uses
	// the default.
	Temperature *float32
}

// Answer is the result for one question.
type Answer struct {
	// Text is the cleaned answer.
	Text string `json:"answer"`

	// Sources lists the source document IDs whose chunks backed the
	// answer, in retrieval order without duplicates.
	Sources []string `json:"sources,omitempty"`

	// Warnings carries non-fatal degradations, such as documents that
	// failed ingestion.
	Warnings []string `json:"warnings,omitempty"`

	// LatencyMS is the wall-clock time to produce this answer.
	LatencyMS int64 `json:"latency_ms"`

	// CacheHit reports whether the answer was served from the cache.
	CacheHit bool `json:"cache_hit"`

	// Model is the model the answer was generated with.
	Model string `json:"model"`
}

// Deps are the collaborators a Pipeline needs. Loader, Chunker, Embedder,
// ChatModel, and Cache are required; the rest are optional.
type Deps struct {
	Loader    *extract.Loader
	Chunker   *chunker.Chunker
	Embedder  rag.Embedder
	ChatModel model.ToolCallingChatModel

	// Persistent is the standing vector store used when a request carries
	// no documents. Nil disables document-free requests.
	Persistent rag.VectorStore

	// Reranker is the optional second-pass reranker, gated by RerankPolicy.
	Reranker     rag.Reranker
	RerankPolicy rag.RerankPolicy

	Cache *cache.Cache

	// AnswerLog persists answered questions. Nil disables logging.
	AnswerLog answers.Log

	// Registry receives the pipeline metrics. Nil falls back to the
	// default registerer.
	Registry prometheus.Registerer
}

// Options are the tunables for a Pipeline. Zero values fall back to defaults.
type Options struct {
	// TopK is the number of chunks retrieved per question.
	TopK int

	// MaxContextTokens bounds the estimated prompt size; retrieved chunks
	// are dropped lowest-score-first to fit.
	MaxContextTokens int

	// QuestionConcurrency bounds parallel question answering.
	QuestionConcurrency int

	// MaxAttempts is the number of generation attempts per question.
	MaxAttempts int

	// DefaultModel names the model used when the request does not override.
	DefaultModel string

	// DefaultTemperature is the sampling temperature used when the request
	// does not override.
	DefaultTemperature float32
}

// Pipeline answers questions over documents. Safe for concurrent use.
type Pipeline struct {
	loader    *extract.Loader
	chunker   *chunker.Chunker
	embedder  rag.Embedder
	chatModel model.ToolCallingChatModel

	persistent rag.VectorStore

	reranker     rag.Reranker
	rerankPolicy rag.RerankPolicy

	cache     *cache.Cache
	answerLog answers.Log

	opts    Options
	metrics *pipelineMetrics
}

// New constructs a Pipeline from the given dependencies and options.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Loader == nil {
		return nil, fmt.Errorf("pipeline: Loader must not be nil")
	}
	if deps.Chunker == nil {
		return nil, fmt.Errorf("pipeline: Chunker must not be nil")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("pipeline: Embedder must not be nil")
	}
	if deps.ChatModel == nil {
		return nil, fmt.Errorf("pipeline: ChatModel must not be nil")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("pipeline: Cache must not be nil")
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = budget.DefaultMaxContextTokens
	}
	if opts.QuestionConcurrency <= 0 {
		opts.QuestionConcurrency = defaultQuestionConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Pipeline{
		loader:       deps.Loader,
		chunker:      deps.Chunker,
		embedder:     deps.Embedder,
		chatModel:    deps.ChatModel,
		persistent:   deps.Persistent,
		reranker:     deps.Reranker,
		rerankPolicy: deps.RerankPolicy,
		cache:        deps.Cache,
		answerLog:    deps.AnswerLog,
		opts:         opts,
		metrics:      newPipelineMetrics(reg),
	}, nil
}

// Run answers all questions in q. Answers are index-aligned with
// q.Questions. A per-document ingestion failure becomes a warning on every
// answer; if all documents fail, or any question cannot be answered after
// retries, the whole run fails.
func (p *Pipeline) Run(ctx context.Context, q Query) ([]Answer, error) {
	log := logging.FromContext(ctx)
	state := StateReceived
	log.Debug("run started", slog.String("state", string(state)),
		slog.Int("sources", len(q.Sources)), slog.Int("questions", len(q.Questions)))

	if len(q.Questions) == 0 {
		return nil, fmt.Errorf("pipeline: no questions supplied")
	}
	modelID := q.Model
	if modelID == "" {
		modelID = p.opts.DefaultModel
	}
	temperature := p.opts.DefaultTemperature
	if q.Temperature != nil {
		temperature = *q.Temperature
	}
	if temperature < 0 || temperature > 1 {
		return nil, fmt.Errorf("pipeline: temperature %.2f out of range [0, 1]", temperature)
	}

	store, sourceIDs, warnings, cleanup, err := p.prepareStore(ctx, q.Sources, &state)
	if err != nil {
		p.metrics.runsTotal.WithLabelValues(outcomeFailed).Inc()
		log.Error("run failed", slog.String("state", string(StateFailed)), slog.Any("error", err))
		return nil, err
	}
	defer cleanup()

	retrieverOpts := []rag.RetrieverOption{}
	if p.reranker != nil {
		retrieverOpts = append(retrieverOpts, rag.WithReranker(p.reranker, p.rerankPolicy))
	}
	retriever, err := rag.NewRetriever(p.embedder, store, p.opts.TopK, retrieverOpts...)
	if err != nil {
		p.metrics.runsTotal.WithLabelValues(outcomeFailed).Inc()
		return nil, fmt.Errorf("pipeline: building retriever: %w", err)
	}

	state = StateRetrieving
	results := make([]Answer, len(q.Questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.QuestionConcurrency)
	for i, question := range q.Questions {
		g.Go(func() error {
			a, err := p.answerOne(gctx, retriever, sourceIDs, question, modelID, temperature)
			if err != nil {
				return fmt.Errorf("pipeline: question %d: %w", i, err)
			}
			a.Warnings = append(append([]string(nil), warnings...), a.Warnings...)
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.metrics.runsTotal.WithLabelValues(outcomeFailed).Inc()
		log.Error("run failed", slog.String("state", string(StateFailed)), slog.Any("error", err))
		return nil, err
	}

	state = StateReturned
	p.metrics.runsTotal.WithLabelValues(outcomeOK).Inc()
	log.Debug("run finished", slog.String("state", string(state)))
	return results, nil
}

// IngestPersistent loads and indexes sources into the persistent store,
// making them available to later document-free queries. Returns warnings for
// sources that failed to ingest.
func (p *Pipeline) IngestPersistent(ctx context.Context, sources []extract.Source) ([]string, error) {
	if p.persistent == nil {
		return nil, fmt.Errorf("pipeline: no persistent store configured")
	}
	state := StateIngesting
	_, warnings, err := p.ingest(ctx, sources, p.persistent, &state)
	return warnings, err
}

// prepareStore selects the vector store for this run. Requests carrying
// documents get a fresh in-memory store populated by ingestion; document-free
// requests run against the persistent store.
func (p *Pipeline) prepareStore(ctx context.Context, sources []extract.Source, state *State) (store rag.VectorStore, sourceIDs []string, warnings []string, cleanup func(), err error) {
	if len(sources) == 0 {
		if p.persistent == nil {
			return nil, nil, nil, nil, fmt.Errorf("pipeline: no documents supplied and no persistent store configured")
		}
		return p.persistent, []string{persistentNamespace}, nil, func() {}, nil
	}

	mem := rag.NewMemoryStore(0)
	*state = StateIngesting
	sourceIDs, warnings, err = p.ingest(ctx, sources, mem, state)
	if err != nil {
		_ = mem.Close()
		return nil, nil, nil, nil, err
	}
	return mem, sourceIDs, warnings, func() { _ = mem.Close() }, nil
}

// ingest loads every source, chunks the extracted text, embeds the chunks in
// batches, and upserts them into store. A single failing source becomes a
// warning; all sources failing, or any embedding or indexing error, fails the
// run. A dimension mismatch is never retried.
func (p *Pipeline) ingest(ctx context.Context, sources []extract.Source, store rag.VectorStore, state *State) (sourceIDs, warnings []string, err error) {
	log := logging.FromContext(ctx)

	var docs []rag.Document
	var texts []string
	for _, src := range sources {
		id := src.ID
		if id == "" {
			if src.URL != "" {
				id = src.URL
			} else {
				id = src.Name
			}
		}
		blocks, err := p.loader.Load(ctx, src)
		if err != nil {
			p.metrics.ingestFailuresTotal.Inc()
			warnings = append(warnings, fmt.Sprintf("document %q could not be ingested: %v", id, err))
			log.Warn("document ingestion failed", slog.String("source", id), slog.Any("error", err))
			continue
		}
		sourceIDs = append(sourceIDs, id)
		for _, b := range blocks {
			for _, ch := range p.chunker.Split(id, b.Text, b.Page) {
				docs = append(docs, rag.Document{
					ID:      ch.ID,
					Content: ch.Text,
					Source:  id,
					Page:    ch.Page,
					Ordinal: ch.Ordinal,
				})
				texts = append(texts, ch.Text)
			}
		}
	}
	if len(sourceIDs) == 0 {
		return nil, nil, fmt.Errorf("pipeline: all %d documents failed ingestion", len(sources))
	}

	*state = StateIndexing
	for start := 0; start < len(docs); start += embedBatchSize {
		end := min(start+embedBatchSize, len(docs))
		embeddings, err := p.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: embedding chunks %d..%d: %w", start, end, err)
		}
		if err := store.Upsert(ctx, docs[start:end], embeddings); err != nil {
			if errors.Is(err, rag.ErrDimensionMismatch) {
				return nil, nil, fmt.Errorf("pipeline: indexing aborted: %w", err)
			}
			return nil, nil, fmt.Errorf("pipeline: indexing chunks %d..%d: %w", start, end, err)
		}
	}
	log.Debug("indexing complete", slog.Int("documents", len(sourceIDs)), slog.Int("chunks", len(docs)))
	return sourceIDs, warnings, nil
}

// answered is the cacheable portion of an Answer. Latency and cache-hit
// status are per-request and never cached.
type answered struct {
	Text    string
	Sources []string
}

// answerOne resolves a single question through the cache, computing the
// answer on a miss. Concurrent identical questions share one computation.
func (p *Pipeline) answerOne(ctx context.Context, retriever rag.Retriever, sourceIDs []string, question, modelID string, temperature float32) (Answer, error) {
	start := time.Now()

	fp := cache.Fingerprint(sourceIDs, question, modelID, temperature)
	v, hit, err := p.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (any, error) {
		return p.compute(ctx, retriever, question, modelID, temperature)
	})
	if err != nil {
		return Answer{}, err
	}
	if hit {
		p.metrics.cacheHitsTotal.Inc()
	} else {
		p.metrics.cacheMissesTotal.Inc()
	}

	res := v.(*answered)
	a := Answer{
		Text:      res.Text,
		Sources:   res.Sources,
		LatencyMS: time.Since(start).Milliseconds(),
		CacheHit:  hit,
		Model:     modelID,
	}
	p.record(ctx, question, a)
	return a, nil
}

// record persists the answer to the answer log. Logging failures are
// non-fatal.
func (p *Pipeline) record(ctx context.Context, question string, a Answer) {
	if p.answerLog == nil {
		return
	}
	rec := answers.Record{
		Question:  question,
		Answer:    a.Text,
		Model:     a.Model,
		LatencyMS: a.LatencyMS,
		CacheHit:  a.CacheHit,
	}
	if err := p.answerLog.Append(ctx, rec); err != nil {
		logging.FromContext(ctx).Warn("failed to persist answer", slog.Any("error", err))
	}
}
