package vectorstore

import (
	"context"
	"fmt"

	"docubrain/internal/embedding"
)

// ErrDimensionMismatch is returned when a vector does not match the index width.
// It is the same sentinel the embedding package uses for ragged batches.
var ErrDimensionMismatch = embedding.ErrDimensionMismatch

// Hit is one row returned by a similarity search.
type Hit struct {
	Row   int
	Score float32
}

// Index is an exact inner-product similarity index over L2-normalized vectors.
// Rows are numbered in insertion order starting at 0.
type Index interface {
	Dimension() int
	Len() int
	// Add appends rows in order.
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns min(k, Len()) hits by descending score; ties keep row order.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	// Rebuild discards all rows and inserts vectors in order.
	Rebuild(ctx context.Context, vectors [][]float32) error
	MarshalBinary() ([]byte, error)
}

// VectorSource is implemented by indexes that can hand back their stored rows,
// which lets callers rebuild without embedding the texts again.
type VectorSource interface {
	Vectors() [][]float32
}

// Dropper is implemented by indexes backed by external storage that should be
// released once the index holds no rows.
type Dropper interface {
	Drop(ctx context.Context) error
}

// Factory creates and restores indexes of one kind.
type Factory interface {
	Kind() string
	New(ctx context.Context, dimension int) (Index, error)
	Load(ctx context.Context, blob []byte) (Index, error)
}

// CheckDimensions verifies every vector has the given width.
func CheckDimensions(dimension int, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("row %d has width %d, index expects %d: %w", i, len(v), dimension, ErrDimensionMismatch)
		}
	}
	return nil
}
