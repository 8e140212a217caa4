package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 600
	DefaultChunkOverlap = 80
)

// Chunker splits long text into bounded, overlapping segments suitable
// for embedding. Splits prefer paragraph boundaries, then sentence
// boundaries, before falling back to a hard cut at MaxSize. Output is
// deterministic for identical input.
type Chunker struct {
	MaxSize int
	Overlap int
}

func NewChunker(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{MaxSize: maxSize, Overlap: overlap}
}

// Split chunks text by byte offsets into the original. Consecutive
// chunks overlap by up to c.Overlap bytes so cross-boundary context
// survives retrieval. No chunk is ever empty, and concatenating the
// chunks with the overlapped prefixes removed reconstructs the input.
func (c *Chunker) Split(sourceID, text string) []DocumentChunk {
	if text == "" {
		return nil
	}

	var chunks []DocumentChunk
	start := 0
	for start < len(text) {
		end := c.cutPoint(text, start)

		chunks = append(chunks, DocumentChunk{
			ID:       chunkID(sourceID, start, end),
			SourceID: sourceID,
			Text:     text[start:end],
			Start:    start,
			End:      end,
		})

		if end >= len(text) {
			break
		}

		next := end - c.Overlap
		if next <= start {
			next = start + 1
		}
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}

	return chunks
}

// cutPoint picks the end offset for a chunk beginning at start: the
// last paragraph break inside the window, else the last sentence end,
// else a hard cut at MaxSize.
func (c *Chunker) cutPoint(text string, start int) int {
	limit := start + c.MaxSize
	if limit >= len(text) {
		return len(text)
	}

	window := text[start:limit]
	// Require the boundary past the midpoint so chunks stay similar in
	// size instead of collapsing onto early breaks.
	floor := c.MaxSize / 2

	if idx := strings.LastIndex(window, "\n\n"); idx > floor {
		return start + idx + 2
	}

	best := -1
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if idx := strings.LastIndex(window, sep); idx > floor && idx+len(sep) > best {
			best = idx + len(sep)
		}
	}
	if best > 0 {
		return start + best
	}

	// Hard cut, backed up so a multi-byte rune is never split.
	for limit > start+1 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return limit
}

func chunkID(sourceID string, start, end int) string {
	sum := sha256.Sum256([]byte(sourceID))
	return fmt.Sprintf("%s-%d-%d", hex.EncodeToString(sum[:6]), start, end)
}
