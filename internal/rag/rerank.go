package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RerankPolicy decides per question whether the cross-encoding second pass
// is worth its extra latency. Reranking roughly doubles per-question model
// usage, so it is reserved for questions the embedding metric handles badly:
// long, multi-clause, or comparative ones.
type RerankPolicy struct {
	// Always forces reranking for every question.
	Always bool

	// MinWords triggers reranking when the question has at least this many
	// words. Zero disables the length trigger.
	MinWords int
}

// ambiguityMarkers are question fragments that correlate with poor
// embedding-only rankings: comparisons and causal questions tend to need a
// relevance model that sees question and chunk together.
var ambiguityMarkers = []string{
	"compare", "difference between", "versus", " vs ", "why", "under what conditions", "in which cases",
}

// ShouldRerank reports whether the policy fires for the given question.
func (p RerankPolicy) ShouldRerank(question string) bool {
	if p.Always {
		return true
	}
	if p.MinWords > 0 && len(strings.Fields(question)) >= p.MinWords {
		return true
	}
	lower := strings.ToLower(question)
	for _, marker := range ambiguityMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// LLMReranker implements Reranker by asking a chat model to order candidate
// chunks by relevance to the question. The model sees question and chunk
// together (cross-encoding), unlike the embedding similarity that scored
// them independently.
type LLMReranker struct {
	chatModel model.ToolCallingChatModel
}

// NewLLMReranker constructs an LLMReranker over the given chat model.
func NewLLMReranker(m model.ToolCallingChatModel) (*LLMReranker, error) {
	if m == nil {
		return nil, fmt.Errorf("rag: rerank model must not be nil")
	}
	return &LLMReranker{chatModel: m}, nil
}

// rerankSystemPrompt instructs the model to reply with a bare index list so
// the response parses without any structured-output machinery.
const rerankSystemPrompt = `You rank text passages by how well they answer a question.
You will receive a question and a numbered list of passages.
Reply with ONLY the passage numbers in descending order of relevance, comma-separated.
Example reply: 3,1,2
Do not explain. Do not include any other text.`

// Rerank asks the model to order candidates and returns the top k in the
// model's order. Indices the model omits or invents are dropped; candidates
// the model skipped are appended in their original order so the result is
// always a permutation prefix of the input.
func (r *LLMReranker) Rerank(ctx context.Context, question string, candidates []Document, k int) ([]Document, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nPassages:\n", question)
	for i, doc := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, doc.Content)
	}

	resp, err := r.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(rerankSystemPrompt),
		schema.UserMessage(b.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("rag: rerank generate failed: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("rag: rerank returned empty response")
	}

	order, err := parseRankList(resp.Content, len(candidates))
	if err != nil {
		return nil, fmt.Errorf("rag: rerank response unparseable: %w", err)
	}

	seen := make(map[int]bool, len(candidates))
	out := make([]Document, 0, k)
	for _, idx := range order {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, candidates[idx])
	}
	for i := range candidates {
		if !seen[i] {
			out = append(out, candidates[i])
		}
	}
	return out[:k], nil
}

// parseRankList extracts 1-based passage numbers from the model reply and
// returns their 0-based indices. Out-of-range numbers are ignored; a reply
// with no valid number at all is an error.
func parseRankList(reply string, n int) ([]int, error) {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return r < '0' || r > '9'
	})
	var order []int
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 1 || v > n {
			continue
		}
		order = append(order, v-1)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("no passage numbers in %q", strings.TrimSpace(reply))
	}
	return order, nil
}
