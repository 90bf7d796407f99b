// Package chunker splits raw document text into bounded, overlapping units
// suitable for embedding and retrieval.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput reports chunking parameters a caller got wrong, such as a
// zero window size.
var ErrInvalidInput = errors.New("chunker: invalid input")

// Chunk is a bounded contiguous slice of a source document's text. Index is
// the chunk's position within the document, counting from zero.
type Chunk struct {
	Text  string
	Index int
}

// Chunker splits text into chunks.
type Chunker interface {
	Chunk(text string) []Chunk
}

// Split slides a window of maxSize characters over text, preferring to cut at
// a sentence terminator in the second half of the window. Consecutive chunks
// share up to overlap characters. Empty and whitespace-only chunks are
// dropped. The window start always advances by at least one character, so
// Split terminates even when overlap >= maxSize.
func Split(text string, maxSize, overlap int) ([]Chunk, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidInput, maxSize)
	}
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= maxSize {
		return []Chunk{{Text: string(runes), Index: 0}}, nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + maxSize
		last := end >= len(runes)
		if last {
			end = len(runes)
		} else if cut := lastTerminator(runes, start, end); cut > start+maxSize/2 {
			// Prefer a sentence boundary, but only if it lands past the
			// midpoint of the window.
			end = cut + 1
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Text: piece, Index: len(chunks)})
		}
		if last {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks, nil
}

// lastTerminator returns the index of the last sentence terminator in
// runes[start:end), or -1 if there is none.
func lastTerminator(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == '.' {
			return i
		}
	}
	return -1
}

// Window is the default Chunker: character windows with sentence-boundary
// cuts, as implemented by Split.
type Window struct {
	maxSize int
	overlap int
}

// NewWindow creates a character-window chunker. maxSize must be positive.
func NewWindow(maxSize, overlap int) (*Window, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidInput, maxSize)
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Window{maxSize: maxSize, overlap: overlap}, nil
}

// Chunk splits text using the window parameters set at construction.
func (w *Window) Chunk(text string) []Chunk {
	chunks, _ := Split(text, w.maxSize, w.overlap)
	return chunks
}
