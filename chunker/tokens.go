package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TokenWindow chunks by token count rather than characters, using the
// cl100k_base BPE encoding. Useful when the downstream embedding model has a
// token budget rather than a character one.
type TokenWindow struct {
	enc       *tiktoken.Tiktoken
	maxTokens int
	overlap   int
}

// NewTokenWindow creates a token-window chunker. maxTokens must be positive;
// an overlap >= maxTokens is clamped to maxTokens/4.
func NewTokenWindow(maxTokens, overlap int) (*TokenWindow, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: token budget must be positive, got %d", ErrInvalidInput, maxTokens)
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxTokens {
		overlap = maxTokens / 4
	}

	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("chunker: load %s encoding: %w", defaultEncoding, err)
	}

	return &TokenWindow{enc: enc, maxTokens: maxTokens, overlap: overlap}, nil
}

// Chunk splits text into windows of at most maxTokens tokens.
func (t *TokenWindow) Chunk(text string) []Chunk {
	ids := t.enc.Encode(text, nil, nil)
	if len(ids) == 0 {
		return nil
	}

	step := t.maxTokens - t.overlap
	if step <= 0 {
		step = 1
	}

	var chunks []Chunk
	for start := 0; start < len(ids); start += step {
		end := start + t.maxTokens
		if end > len(ids) {
			end = len(ids)
		}

		piece := strings.TrimSpace(t.enc.Decode(ids[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Text: piece, Index: len(chunks)})
		}

		if end == len(ids) {
			break
		}
	}

	return chunks
}

// CountTokens returns the cl100k_base token count of text.
func (t *TokenWindow) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
