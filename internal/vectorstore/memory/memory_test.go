package memory

import (
	"context"
	"errors"
	"testing"

	"docubrain/internal/vectorstore"
)

var ctx = context.Background()

func mustIndex(t *testing.T, dim int, rows ...[]float32) *Index {
	t.Helper()
	idx, err := New(dim)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if len(rows) > 0 {
		if err := idx.Add(ctx, rows); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	return idx
}

func TestSearch_OrderAndLength(t *testing.T) {
	idx := mustIndex(t, 2,
		[]float32{1, 0},
		[]float32{0, 1},
		[]float32{0.6, 0.8},
	)
	hits, err := idx.Search(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected min(k, rows)=3 hits, got %d", len(hits))
	}
	wantRows := []int{0, 2, 1}
	for i, h := range hits {
		if h.Row != wantRows[i] {
			t.Errorf("hit %d: expected row %d, got %d", i, wantRows[i], h.Row)
		}
	}
	if hits[0].Score != 1 {
		t.Errorf("expected score 1 for identical vector, got %f", hits[0].Score)
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx := mustIndex(t, 2,
		[]float32{0, 1},
		[]float32{1, 0},
		[]float32{0, 1},
		[]float32{1, 0},
	)
	hits, err := idx.Search(ctx, []float32{1, 0}, 4)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	wantRows := []int{1, 3, 0, 2}
	for i, h := range hits {
		if h.Row != wantRows[i] {
			t.Fatalf("tie order broken: got %+v", hits)
		}
	}
}

func TestSearch_NonPositiveK(t *testing.T) {
	idx := mustIndex(t, 2, []float32{1, 0})
	hits, err := idx.Search(ctx, []float32{1, 0}, 0)
	if err != nil || len(hits) != 0 {
		t.Errorf("expected no hits, got %v, %v", hits, err)
	}
}

func TestDimensionMismatch(t *testing.T) {
	idx := mustIndex(t, 3)
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}, {1, 0}}); !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on add, got %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("failed add must not insert rows, have %d", idx.Len())
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on search, got %v", err)
	}
}

func TestRebuild_ReplacesRows(t *testing.T) {
	idx := mustIndex(t, 2, []float32{1, 0}, []float32{0, 1})
	if err := idx.Rebuild(ctx, [][]float32{{0, 1}}); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 row after rebuild, got %d", idx.Len())
	}
	hits, _ := idx.Search(ctx, []float32{0, 1}, 3)
	if len(hits) != 1 || hits[0].Row != 0 || hits[0].Score != 1 {
		t.Errorf("unexpected hits after rebuild: %+v", hits)
	}
}

func TestAdd_CopiesInput(t *testing.T) {
	v := []float32{1, 0}
	idx := mustIndex(t, 2, v)
	v[0] = 0
	if idx.Vectors()[0][0] != 1 {
		t.Error("index must not alias caller slices")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	idx := mustIndex(t, 3,
		[]float32{0.1, 0.2, 0.3},
		[]float32{-0.5, 0.25, 0.125},
	)
	blob, err := idx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored, err := Factory{}.Load(ctx, blob)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.Dimension() != 3 || restored.Len() != 2 {
		t.Fatalf("unexpected shape %d x %d", restored.Len(), restored.Dimension())
	}
	q := []float32{0.3, 0.2, 0.1}
	a, _ := idx.Search(ctx, q, 2)
	b, _ := restored.Search(ctx, q, 2)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("hit %d differs after round trip: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestUnmarshal_RejectsBadBlobs(t *testing.T) {
	for _, blob := range [][]byte{nil, []byte("nope"), []byte("DBIX\x02\x00\x00\x00\x05\x00\x00\x00")} {
		if _, err := Unmarshal(blob); err == nil {
			t.Errorf("expected error for blob %q", blob)
		}
	}
}
