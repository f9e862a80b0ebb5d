// Package chunker splits extracted document text into fixed-size overlapping
// windows ready for embedding. Window and overlap sizes are counted in runes
// so multi-byte text never splits inside a character.
package chunker

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// DefaultSize is the default chunk window size in runes.
const DefaultSize = 1000

// DefaultOverlap is the default overlap between consecutive chunks in runes.
const DefaultOverlap = 200

// Chunk is one window of a source document.
type Chunk struct {
	// ID is a deterministic identifier derived from the source ID and
	// ordinal, stable across re-ingestion of the same content.
	ID string

	// Text is the chunk content.
	Text string

	// Ordinal is the zero-based position of this chunk within its source.
	Ordinal int

	// Page is the 1-based page the chunk starts on, or 0 for unpaged sources.
	Page int
}

// Chunker carries resolved window settings.
type Chunker struct {
	size    int
	overlap int
}

// New constructs a Chunker. Non-positive size falls back to DefaultSize;
// an overlap that is negative or not smaller than the window falls back to
// DefaultOverlap capped below the window.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split cuts text into overlapping windows. Consecutive chunks share
// exactly the configured overlap, every rune of the input appears in at
// least one chunk, and a final partial window is emitted rather than
// dropped. Empty or whitespace-only text yields no chunks; any other input
// is chunked as-is, so concatenating the chunks minus overlaps reproduces
// it exactly, surrounding whitespace included.
func (c *Chunker) Split(sourceID, text string, page int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		ordinal := len(chunks)
		chunks = append(chunks, Chunk{
			ID:      chunkID(sourceID, page, ordinal),
			Text:    string(runes[start:end]),
			Ordinal: ordinal,
			Page:    page,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// chunkID derives a stable identifier from the source, page, and ordinal.
func chunkID(sourceID string, page, ordinal int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d#%d", sourceID, page, ordinal)))
	return fmt.Sprintf("%x", h[:16])
}
