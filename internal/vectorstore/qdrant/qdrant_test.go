package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"docubrain/internal/embedding/hashing"
	"docubrain/internal/vectordb"
	"docubrain/internal/vectorstore"
)

// fakeQdrant implements the handful of collection endpoints the index uses.
type fakeQdrant struct {
	mu     sync.Mutex
	exists bool
	points map[int][]float32
	apiKey string
	// failCreate makes the n-th collection PUT return 500.
	failCreate int
	creates    int
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Header.Get("api-key") != f.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/collections/docs")
	switch {
	case r.Method == http.MethodDelete && path == "":
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.exists = false
		f.points = nil
	case r.Method == http.MethodPut && path == "":
		f.creates++
		if f.creates == f.failCreate {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.exists = true
		f.points = map[int][]float32{}
	case r.Method == http.MethodPut && path == "/points":
		var body struct {
			Points []struct {
				ID     int       `json:"id"`
				Vector []float32 `json:"vector"`
			} `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			f.points[p.ID] = p.Vector
		}
	case r.Method == http.MethodPost && path == "/points/search":
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		type scored struct {
			ID    int     `json:"id"`
			Score float32 `json:"score"`
		}
		var res []scored
		for id, v := range f.points {
			var s float32
			for i := range v {
				s += v[i] * body.Vector[i]
			}
			res = append(res, scored{id, s})
		}
		// deliberately unordered ties: sort by score only, ids reversed
		sort.Slice(res, func(i, j int) bool {
			if res[i].Score != res[j].Score {
				return res[i].Score > res[j].Score
			}
			return res[i].ID > res[j].ID
		})
		if len(res) > body.Limit {
			res = res[:body.Limit]
		}
		json.NewEncoder(w).Encode(map[string]any{"result": res})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newFactory(t *testing.T) (Factory, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{apiKey: "secret"}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return Factory{Config: Config{URL: srv.URL, APIKey: "secret", Collection: "docs"}}, fake
}

func TestIndex_AddSearchRebuild(t *testing.T) {
	ctx := context.Background()
	f, fake := newFactory(t)
	idx, err := f.New(ctx, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := idx.Add(ctx, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := idx.Add(ctx, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if idx.Len() != 3 || len(fake.points) != 3 {
		t.Fatalf("expected 3 rows, index=%d server=%d", idx.Len(), len(fake.points))
	}
	hits, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 || hits[0].Row != 0 || hits[1].Row != 2 {
		t.Errorf("ties should be ordered by row, got %+v", hits)
	}

	if err := idx.Rebuild(ctx, [][]float32{{0, 1}}); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if idx.Len() != 1 || len(fake.points) != 1 {
		t.Fatalf("expected 1 row after rebuild, index=%d server=%d", idx.Len(), len(fake.points))
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	f, _ := newFactory(t)
	idx, err := f.New(ctx, 3)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := idx.Add(ctx, [][]float32{{1, 0}}); !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestFactory_LoadReattaches(t *testing.T) {
	ctx := context.Background()
	f, _ := newFactory(t)
	idx, err := f.New(ctx, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := idx.Add(ctx, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	blob, err := idx.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored, err := f.Load(ctx, blob)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.Len() != 2 || restored.Dimension() != 2 {
		t.Fatalf("unexpected restored shape %d x %d", restored.Len(), restored.Dimension())
	}
	hits, err := restored.Search(ctx, []float32{0, 1}, 1)
	if err != nil || len(hits) != 1 || hits[0].Row != 1 {
		t.Errorf("unexpected hits %+v, %v", hits, err)
	}

	other := Factory{Config: Config{URL: f.Config.URL, Collection: "other"}}
	if _, err := other.Load(ctx, blob); err == nil {
		t.Error("expected collection mismatch error")
	}
}

func TestIndex_ServerErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	f, _ := newFactory(t)
	f.Config.APIKey = "wrong"
	if _, err := f.New(ctx, 2); err == nil {
		t.Error("expected unauthorized error")
	}
}

func TestIndex_RebuildFailureEmptiesIndex(t *testing.T) {
	ctx := context.Background()
	f, fake := newFactory(t)
	idx, err := f.New(ctx, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := idx.Add(ctx, [][]float32{{1, 0}, {0, 1}, {1, 0}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	fake.failCreate = fake.creates + 1
	if err := idx.Rebuild(ctx, [][]float32{{0, 1}}); err == nil {
		t.Fatal("expected rebuild to fail when the collection cannot be recreated")
	}
	// The old rows are gone on the server, and Len must say so.
	if idx.Len() != 0 || fake.exists {
		t.Errorf("expected an empty index after the failed rebuild, rows=%d exists=%v", idx.Len(), fake.exists)
	}
}

func TestIndex_Drop(t *testing.T) {
	ctx := context.Background()
	f, fake := newFactory(t)
	idx, err := f.New(ctx, 2)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := idx.Add(ctx, [][]float32{{1, 0}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	d, ok := idx.(vectorstore.Dropper)
	if !ok {
		t.Fatal("qdrant index should release its collection")
	}
	if err := d.Drop(ctx); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if fake.exists || idx.Len() != 0 {
		t.Errorf("collection should be deleted, exists=%v rows=%d", fake.exists, idx.Len())
	}
	// Dropping a missing collection is not an error.
	if err := d.Drop(ctx); err != nil {
		t.Errorf("second drop: %v", err)
	}
}

func TestDB_FailedRebuildKeepsCollectionInStep(t *testing.T) {
	ctx := context.Background()
	f, fake := newFactory(t)
	db := vectordb.Open(ctx, hashing.NewEmbedder(64), f, nil)
	if err := db.AddDocuments(ctx, []string{"tidal pools", "alpine lakes"}, "water.pdf"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := db.AddDocuments(ctx, []string{"desert dunes"}, "sand.pdf"); err != nil {
		t.Fatalf("add: %v", err)
	}

	fake.failCreate = fake.creates + 1
	if _, err := db.RemoveDocumentsByFile(ctx, "water.pdf"); err == nil {
		t.Fatal("expected the rebuild to fail")
	}
	if db.Len() != 3 || db.IndexLen() != 3 || len(fake.points) != 3 {
		t.Fatalf("records=%d index=%d server=%d, want 3 each", db.Len(), db.IndexLen(), len(fake.points))
	}
	for _, rec := range db.Records() {
		res, err := db.Search(ctx, rec.Text, 1, nil)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(res) != 1 || res[0].Text != rec.Text {
			t.Errorf("record %q is not aligned with its row: %+v", rec.Text, res)
		}
	}

	if _, err := db.RemoveDocumentsByFile(ctx, "water.pdf"); err != nil {
		t.Fatalf("retry remove: %v", err)
	}
	if _, err := db.RemoveDocumentsByFile(ctx, "sand.pdf"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if fake.exists {
		t.Error("collection should be deleted once the last record is removed")
	}
}
