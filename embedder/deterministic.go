package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// Compile-time interface check.
var _ Provider = (*Deterministic)(nil)

const defaultDeterministicDims = 384

// Deterministic derives vectors by seeding a PRNG from a hash of the text:
// the same text always yields bit-identical vectors. It exists for
// reproducible tests and for running without a live model backend; selecting
// it is a configuration decision, not a fallback.
type Deterministic struct {
	dims int
}

// NewDeterministic creates a deterministic provider. dims defaults to 384.
func NewDeterministic(dims int) *Deterministic {
	if dims <= 0 {
		dims = defaultDeterministicDims
	}
	return &Deterministic{dims: dims}
}

// Generate produces one pseudo-random but text-stable vector per input.
func (d *Deterministic) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte(text))
		seed := int64(binary.BigEndian.Uint64(sum[:8]))
		rng := rand.New(rand.NewSource(seed))

		vec := make([]float32, d.dims)
		for j := range vec {
			vec[j] = float32(rng.NormFloat64())
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the configured vector length.
func (d *Deterministic) Dimension() int { return d.dims }

// ModelID identifies the provider as mock-<dimension>.
func (d *Deterministic) ModelID() string { return fmt.Sprintf("mock-%d", d.dims) }
