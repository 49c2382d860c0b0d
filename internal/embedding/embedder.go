package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrZeroVector is returned when a vector with no magnitude would enter the index.
var ErrZeroVector = errors.New("cannot normalize zero vector")

// ErrDimensionMismatch is returned when vectors in one batch differ in width.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Embedder converts free text into numeric vectors of a fixed, model-defined width.
type Embedder interface {
	Name() string
	// Dimension returns the vector width, or 0 while it is not known yet.
	Dimension() int
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Normalize scales v to unit L2 length in place.
func Normalize(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return ErrZeroVector
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return nil
}

// NormalizeAll normalizes a batch and checks every vector has the same width.
// The batch is copied so a failure leaves the input untouched.
func NormalizeAll(vectors [][]float32) ([][]float32, error) {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("vector %d: %w", i, ErrZeroVector)
		}
		if len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("vector %d has width %d, expected %d: %w", i, len(v), len(vectors[0]), ErrDimensionMismatch)
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		if err := Normalize(cp); err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		out[i] = cp
	}
	return out, nil
}
