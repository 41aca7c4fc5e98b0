// Package chunker splits section text into token-bounded, overlapping chunks
// for embedding. Token counts are exact (cl100k_base via tiktoken), never
// approximated by character or word counts: downstream embedding models
// enforce hard token limits, so an approximation is a correctness bug.
package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultSeparators is the recursive split hierarchy, tried in priority order:
// paragraph -> line -> sentence -> word -> character. Separators are retained
// in the output so sentence and paragraph boundaries remain legible.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// TokenChunker produces overlapping chunks of at most ChunkSize tokens.
// A single atomic piece that no separator can split (e.g. one table
// placeholder line) may exceed the budget; everything else is bounded.
type TokenChunker struct {
	ChunkSize int
	Overlap   int

	encoding *tiktoken.Tiktoken
}

// NewTokenChunker creates a chunker sized in exact tokens.
// Failing to load the tokenizer is a construction-time fatal error:
// the chunker cannot operate without it.
func NewTokenChunker(chunkSize, overlap int) (*TokenChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk_size), got %d", overlap)
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("cl100k_base encoding unavailable: %w", err)
	}

	return &TokenChunker{
		ChunkSize: chunkSize,
		Overlap:   overlap,
		encoding:  enc,
	}, nil
}

// CountTokens returns the exact token length of text under the chunker's
// encoding. This is the single sizing function for split decisions and any
// downstream token-count metadata; using a different tokenizer elsewhere
// makes chunk boundaries silently drift from reported counts.
func (c *TokenChunker) CountTokens(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// Chunk splits text into token-bounded chunks with overlap.
// Empty or whitespace-only input returns nil, not an error.
// Whitespace-only pieces are dropped after splitting, so the returned count
// can be smaller than naive size/overlap arithmetic would predict.
func (c *TokenChunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	raw := c.splitText(text, DefaultSeparators)

	chunks := make([]string, 0, len(raw))
	for _, piece := range raw {
		trimmed := strings.TrimSpace(piece)
		if trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}

// splitText recursively splits text, preferring the earliest separator in
// seps that actually occurs, then merging the pieces back into budget-sized
// chunks. Pieces still over budget recurse with the remaining separators.
func (c *TokenChunker) splitText(text string, seps []string) []string {
	// Pick the first applicable separator. "" always applies (per-character).
	separator := seps[len(seps)-1]
	var remaining []string
	for i, s := range seps {
		if s == "" {
			separator = ""
			remaining = nil
			break
		}
		if strings.Contains(text, s) {
			separator = s
			remaining = seps[i+1:]
			break
		}
	}

	splits := splitKeepSeparator(text, separator)

	var final []string
	var good []string
	for _, piece := range splits {
		if c.CountTokens(piece) < c.ChunkSize {
			good = append(good, piece)
			continue
		}
		// Flush accumulated small pieces before handling the oversized one.
		if len(good) > 0 {
			final = append(final, c.mergeSplits(good)...)
			good = nil
		}
		if len(remaining) == 0 {
			// Atomic unit: nothing left to split on. Emit as-is.
			final = append(final, piece)
		} else {
			final = append(final, c.splitText(piece, remaining)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.mergeSplits(good)...)
	}
	return final
}

// splitKeepSeparator splits text on sep, re-attaching the separator to the
// start of each following piece so no characters are lost.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		// Character-level split.
		runes := []rune(text)
		out := make([]string, 0, len(runes))
		for _, r := range runes {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i == 0 {
			if p != "" {
				out = append(out, p)
			}
			continue
		}
		out = append(out, sep+p)
	}
	return out
}

// mergeSplits packs consecutive pieces into chunks of at most ChunkSize
// tokens. When a chunk is emitted, pieces are dropped from the front of the
// window until at most Overlap tokens remain; those trailing tokens open the
// next chunk, giving each chunk after the first its overlap with the
// previous one.
func (c *TokenChunker) mergeSplits(splits []string) []string {
	var docs []string
	var current []string
	total := 0

	for _, piece := range splits {
		n := c.CountTokens(piece)
		if total+n > c.ChunkSize && len(current) > 0 {
			doc := strings.Join(current, "")
			if strings.TrimSpace(doc) != "" {
				docs = append(docs, doc)
			}
			// Shrink the window to the overlap budget, and further if the
			// incoming piece still would not fit.
			for total > c.Overlap || (total+n > c.ChunkSize && total > 0) {
				total -= c.CountTokens(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}

	if doc := strings.Join(current, ""); strings.TrimSpace(doc) != "" {
		docs = append(docs, doc)
	}
	return docs
}
