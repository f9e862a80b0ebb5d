package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/docqa/docqa-go/internal/budget"
	"github.com/docqa/docqa-go/internal/logging"
	"github.com/docqa/docqa-go/internal/rag"
)

// FallbackAnswer is the exact reply required when the retrieved context does
// not contain the answer. The system prompt instructs the model to emit it
// verbatim, so callers and tests can match on it.
const FallbackAnswer = "The information is not available in the provided documents."

// systemPrompt constrains the model to grounded, terse answers. The response
// examples anchor the expected length and register.
const systemPrompt = `You are a highly intelligent Q&A assistant designed to analyze any provided document. Your primary goal is to answer questions accurately based *only* on the text supplied in the 'Context' section.

**Core Instructions:**
- Analyze the Context: Carefully examine the provided context. If it appears to be a table (e.g., with rows, columns, or comma-separated values), interpret it as structured data.
- Read the context and the user's question carefully.
- Synthesize the information to answer all parts of the question.
- **Be Precise:** Locate the exact information needed to answer the question. For tabular data, this means finding the correct row and column. For text, it means finding the relevant sentence or fact.
- **Crucially, your entire response must be a single sentence or two sentences.**
- **Do NOT use bullet points, numbered lists, or markdown formatting (like bolding with **).**
- Do NOT add conversational filler, thinking process or introductions like "Here is the information...".
- **CRUCIAL RULE: If the answer is not explicitly stated in the context, you MUST reply with only this exact phrase: "` + FallbackAnswer + `" Do not infer, guess, or provide any information not directly present in the text.**

RESPONSE EXAMPLES:
Question: "What is the grace period for premium payment under the policy?"
Answer: "A grace period of thirty days is provided for premium payment after the due date to renew or continue the policy without losing continuity benefits."

Question: "What is the waiting period for cataract surgery?"
Answer: "The policy has a specific waiting period of two (2) years for cataract surgery."

Provide concise, factual answers only:`

// noContextMarker is substituted for the context section when retrieval
// returns nothing, steering the model toward the fallback phrase.
const noContextMarker = "(no relevant context was found in the provided documents)"

// compute runs retrieval, context assembly, and generation for one question.
// It is invoked under the cache's single-flight group, so only one caller
// computes per fingerprint.
func (p *Pipeline) compute(ctx context.Context, retriever rag.Retriever, question, modelID string, temperature float32) (*answered, error) {
	chunks, err := retriever.Retrieve(ctx, question, p.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	fixed := budget.Estimate(systemPrompt) + budget.Estimate(question)
	chunks = budget.SelectChunks(chunks, fixed, p.opts.MaxContextTokens)

	contextText := noContextMarker
	if len(chunks) > 0 {
		parts := make([]string, len(chunks))
		for i, c := range chunks {
			parts[i] = c.Content
		}
		contextText = strings.Join(parts, "\n\n")
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf("Context:\n---\n%s\n---\n\nQuestion: %s", contextText, question)),
	}

	reply, err := p.generate(ctx, msgs, modelID, temperature)
	if err != nil {
		return nil, err
	}

	return &answered{
		Text:    cleanAnswer(reply),
		Sources: uniqueSources(chunks),
	}, nil
}

// generate calls the chat model with bounded exponential backoff. Rate limits
// and transient completion failures are retried; context cancellation is not.
func (p *Pipeline) generate(ctx context.Context, msgs []*schema.Message, modelID string, temperature float32) (string, error) {
	log := logging.FromContext(ctx)

	opts := []model.Option{model.WithTemperature(temperature)}
	if modelID != "" {
		opts = append(opts, model.WithModel(modelID))
	}

	var reply string
	attempt := 0
	op := func() error {
		attempt++
		resp, err := p.chatModel.Generate(ctx, msgs, opts...)
		if err != nil {
			err = classifyModelErr(err)
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			p.metrics.generationRetriesTotal.Inc()
			log.Warn("generation attempt failed",
				slog.Int("attempt", attempt), slog.Any("error", err))
			return err
		}
		reply = resp.Content
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.opts.MaxAttempts-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("generation failed after %d attempts: %w", attempt, err)
	}
	return reply, nil
}

// classifyModelErr maps an upstream model error onto the retrieval-augmented
// generation sentinels so callers can distinguish throttling from outright
// failure.
func classifyModelErr(err error) error {
	if errors.Is(err, rag.ErrRateLimited) || errors.Is(err, rag.ErrCompletionFailure) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, strings.ToLower(http.StatusText(http.StatusTooManyRequests))) ||
		strings.Contains(msg, "rate limit") {
		return fmt.Errorf("%v: %w", err, rag.ErrRateLimited)
	}
	return fmt.Errorf("%v: %w", err, rag.ErrCompletionFailure)
}

// uniqueSources returns the distinct source IDs of chunks, preserving
// retrieval order.
func uniqueSources(chunks []rag.Document) []string {
	seen := make(map[string]struct{}, len(chunks))
	var out []string
	for _, c := range chunks {
		if _, ok := seen[c.Source]; ok {
			continue
		}
		seen[c.Source] = struct{}{}
		out = append(out, c.Source)
	}
	return out
}
