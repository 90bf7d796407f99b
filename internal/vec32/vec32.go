// Package vec32 encodes float32 vectors as little-endian byte blobs for
// durable storage.
package vec32

import (
	"encoding/binary"
	"math"
)

// Encode converts a vector to its byte representation.
func Encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode converts a byte blob back to a vector.
func Decode(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
