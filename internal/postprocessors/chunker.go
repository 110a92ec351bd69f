package postprocessors

import (
	"strings"
	"unicode/utf8"

	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// ChunkConfig configures the chunker behavior.
// Sizes are measured in bytes.
type ChunkConfig struct {
	// MaxChunkSize is the maximum bytes per chunk
	MaxChunkSize int

	// Overlap is the byte overlap between consecutive chunks
	Overlap int

	// Lookback is how far before the hard cutoff to search for a natural break
	Lookback int
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize: 1000,
		Overlap:      100,
		Lookback:     200,
	}
}

// Chunker splits content into overlapping chunks.
// Output is deterministic for a given text and config.
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.Chunker = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
// Non-positive sizes fall back to the defaults.
func NewChunker(config ChunkConfig) *Chunker {
	def := DefaultChunkConfig()
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = def.MaxChunkSize
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	}
	if config.Lookback <= 0 {
		config.Lookback = def.Lookback
	}
	return &Chunker{config: config}
}

// Chunk splits text into chunks of at most maxChunkSize bytes. Text that
// already fits is returned whole; otherwise each chunk is trimmed of
// surrounding whitespace. Empty text yields a single empty chunk.
func (c *Chunker) Chunk(text string, maxChunkSize, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = c.config.MaxChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if len(text) <= maxChunkSize {
		return []string{text}
	}

	var chunks []string
	for _, s := range c.spans(text, maxChunkSize, overlap) {
		piece := strings.TrimSpace(text[s.start:s.end])
		if piece == "" {
			continue
		}
		chunks = append(chunks, piece)
	}
	if len(chunks) == 0 {
		// whitespace only
		return []string{""}
	}
	return chunks
}

// span is a half-open byte range of the source text.
type span struct {
	start, end int
}

// spans computes untrimmed chunk ranges. Every start is strictly greater
// than the previous one, so the loop terminates for any overlap.
func (c *Chunker) spans(text string, maxChunkSize, overlap int) []span {
	var out []span
	start := 0

	for start < len(text) {
		end := start + maxChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.findBreakPoint(text, start, end)
		}

		out = append(out, span{start: start, end: end})

		if end >= len(text) {
			break
		}

		// Move start with overlap, ensuring we always advance
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = alignForward(text, next)
	}

	return out
}

// findBreakPoint picks where a chunk starting at start should end, given
// the hard cutoff maxEnd. The result is always in (start, maxEnd] and on a
// rune boundary, unless a single rune is wider than the chunk.
func (c *Chunker) findBreakPoint(text string, start, maxEnd int) int {
	hard := alignBackward(text, start, maxEnd)
	if hard <= start {
		// a single rune wider than the chunk; emit it whole
		return alignForward(text, start+1)
	}

	searchStart := hard - c.config.Lookback
	if searchStart < start {
		searchStart = start
	}
	window := text[searchStart:hard]

	// Paragraph boundary
	if idx := strings.LastIndex(window, "\n\n"); idx != -1 {
		return searchStart + idx + 2
	}

	// Sentence boundary
	best := -1
	for _, ender := range sentenceEnders {
		if idx := strings.LastIndex(window, ender); idx != -1 {
			if pos := idx + len(ender); pos > best {
				best = pos
			}
		}
	}
	if best > 0 {
		return searchStart + best
	}

	// Line break
	if idx := strings.LastIndexByte(window, '\n'); idx != -1 {
		return searchStart + idx + 1
	}

	// Any whitespace at or before the cutoff
	if idx := strings.LastIndexAny(text[start:hard], " \t\r\n"); idx > 0 {
		return start + idx + 1
	}

	return hard
}

var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n", ".\t", "!\t", "?\t"}

// alignBackward moves pos back to the nearest rune start, not past floor.
func alignBackward(text string, floor, pos int) int {
	for pos > floor && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// alignForward moves pos forward to the nearest rune start.
func alignForward(text string, pos int) int {
	for pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}
