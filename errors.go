package corpus

import (
	"fmt"

	"corpus/assembler"
	"corpus/chunker"
	"corpus/embedder"
	"corpus/registry"
	"corpus/store"
)

// Sentinel errors, re-exported from the packages that raise them so callers
// can match with errors.Is against a single import.
var (
	ErrInvalidInput        = chunker.ErrInvalidInput
	ErrInvalidFilter       = assembler.ErrInvalidFilter
	ErrProviderUnavailable = embedder.ErrProviderUnavailable
	ErrDimensionMismatch   = embedder.ErrDimensionMismatch
	ErrCollectionNotFound  = store.ErrCollectionNotFound
	ErrCollectionExists    = registry.ErrCollectionExists
	ErrPartialBatch        = registry.ErrPartialBatch
)

// Error wraps errors with operation context.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("corpus.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with operation context.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
