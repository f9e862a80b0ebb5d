// Package budget provides token budget estimation and context trimming for
// prompt assembly. Because the service supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and code). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

import (
	"sort"

	"github.com/cloudwego/eino/schema"

	"github.com/docqa/docqa-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving
	// room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// SelectChunks returns the retrieved chunks that fit the context budget.
// fixedTokens is the cost of everything else in the prompt (system prompt,
// question, instructions). When the full set fits, it is returned unchanged;
// otherwise the lowest-scored chunks are dropped first and the survivors
// keep their retrieval order. At least one chunk is always kept so an
// oversized top hit degrades the answer rather than erasing the context.
func SelectChunks(chunks []rag.Document, fixedTokens, maxTokens int) []rag.Document {
	if len(chunks) == 0 {
		return chunks
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	budget := maxTokens - fixedTokens
	total := 0
	for _, c := range chunks {
		total += Estimate(c.Content)
	}
	if total <= budget {
		return chunks
	}

	// Rank positions by score ascending so the weakest chunks go first.
	order := make([]int, len(chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return chunks[order[a]].Score < chunks[order[b]].Score
	})

	dropped := make([]bool, len(chunks))
	kept := len(chunks)
	for _, idx := range order {
		if total <= budget || kept <= 1 {
			break
		}
		dropped[idx] = true
		kept--
		total -= Estimate(chunks[idx].Content)
	}

	out := make([]rag.Document, 0, kept)
	for i, c := range chunks {
		if !dropped[i] {
			out = append(out, c)
		}
	}
	return out
}
