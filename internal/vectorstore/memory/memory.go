package memory

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"docubrain/internal/vectorstore"
)

// Kind identifies this index type in snapshots.
const Kind = "memory"

const blobMagic = "DBIX"

// Index is a flat in-memory index using brute-force inner product.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
}

func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	return &Index{dimension: dimension}, nil
}

func (s *Index) Dimension() int { return s.dimension }

func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *Index) Add(_ context.Context, vectors [][]float32) error {
	if err := vectorstore.CheckDimensions(s.dimension, vectors); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = append(s.vectors, copyRows(vectors)...)
	return nil
}

func (s *Index) Search(_ context.Context, query []float32, k int) ([]vectorstore.Hit, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query has width %d, index expects %d: %w", len(query), s.dimension, vectorstore.ErrDimensionMismatch)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k > len(s.vectors) {
		k = len(s.vectors)
	}
	if k <= 0 {
		return nil, nil
	}
	hits := make([]vectorstore.Hit, len(s.vectors))
	for i := range s.vectors {
		hits[i] = vectorstore.Hit{Row: i, Score: dot(s.vectors[i], query)}
	}
	// Stable so equal scores keep insertion order
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits[:k], nil
}

func (s *Index) Rebuild(_ context.Context, vectors [][]float32) error {
	if err := vectorstore.CheckDimensions(s.dimension, vectors); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = copyRows(vectors)
	return nil
}

// Vectors returns a copy of the stored rows in order.
func (s *Index) Vectors() [][]float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRows(s.vectors)
}

// MarshalBinary encodes the index as a magic header, the dimension and row
// count, then every component as a little-endian float32.
func (s *Index) MarshalBinary() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := make([]byte, 12+len(s.vectors)*s.dimension*4)
	copy(buf, blobMagic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(s.dimension))
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(s.vectors)))
	off := 12
	for _, v := range s.vectors {
		for _, x := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(x))
			off += 4
		}
	}
	return buf, nil
}

// Unmarshal restores an index written by MarshalBinary.
func Unmarshal(data []byte) (*Index, error) {
	if len(data) < 12 || string(data[:4]) != blobMagic {
		return nil, errors.New("not a memory index blob")
	}
	dimension := int(binary.LittleEndian.Uint32(data[4:]))
	rows := int(binary.LittleEndian.Uint32(data[8:]))
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	if len(data)-12 != rows*dimension*4 {
		return nil, fmt.Errorf("index blob truncated: %d rows of width %d need %d bytes, have %d", rows, dimension, rows*dimension*4, len(data)-12)
	}
	vectors := make([][]float32, rows)
	off := 12
	for i := range vectors {
		v := make([]float32, dimension)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vectors[i] = v
	}
	return &Index{dimension: dimension, vectors: vectors}, nil
}

// Factory creates memory indexes.
type Factory struct{}

func (Factory) Kind() string { return Kind }

func (Factory) New(_ context.Context, dimension int) (vectorstore.Index, error) {
	return New(dimension)
}

func (Factory) Load(_ context.Context, blob []byte) (vectorstore.Index, error) {
	return Unmarshal(blob)
}

func copyRows(vectors [][]float32) [][]float32 {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		cp := make([]float32, len(v))
		copy(cp, v)
		out[i] = cp
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
