package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"docubrain/internal/vectorstore"
)

// Kind identifies this index type in snapshots.
const Kind = "qdrant"

// Index keeps its rows in a Qdrant collection.
// Point ids are row numbers and the collection uses dot-product distance.
type Index struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	rows       int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

type state struct {
	Collection string `json:"collection"`
	Dimension  int    `json:"dimension"`
	Rows       int    `json:"rows"`
}

func newIndex(cfg Config, dimension, rows int) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Index{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  dimension,
		rows:       rows,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *Index) Dimension() int { return s.dimension }

func (s *Index) Len() int { return s.rows }

func (s *Index) Add(ctx context.Context, vectors [][]float32) error {
	if err := vectorstore.CheckDimensions(s.dimension, vectors); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	if err := s.upsert(ctx, s.rows, vectors); err != nil {
		return err
	}
	s.rows += len(vectors)
	return nil
}

func (s *Index) Search(ctx context.Context, query []float32, k int) ([]vectorstore.Hit, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query has width %d, index expects %d: %w", len(query), s.dimension, vectorstore.ErrDimensionMismatch)
	}
	if k > s.rows {
		k = s.rows
	}
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": false,
	}
	var resp struct {
		Result []struct {
			ID    int     `json:"id"`
			Score float32 `json:"score"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	hits := make([]vectorstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, vectorstore.Hit{Row: r.ID, Score: r.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Row < hits[j].Row
	})
	return hits, nil
}

// Rebuild drops the collection, recreates it and uploads vectors as rows 0..n-1.
func (s *Index) Rebuild(ctx context.Context, vectors [][]float32) error {
	if err := vectorstore.CheckDimensions(s.dimension, vectors); err != nil {
		return err
	}
	if err := s.drop(ctx); err != nil {
		return err
	}
	s.rows = 0
	if err := s.create(ctx); err != nil {
		return err
	}
	return s.Add(ctx, vectors)
}

// Drop deletes the collection. The index is empty afterwards and must not be
// used again; a later Add goes through the factory.
func (s *Index) Drop(ctx context.Context) error {
	if err := s.drop(ctx); err != nil {
		return err
	}
	s.rows = 0
	return nil
}

// MarshalBinary records enough to reattach to the collection; the vectors stay in Qdrant.
func (s *Index) MarshalBinary() ([]byte, error) {
	return json.Marshal(state{Collection: s.collection, Dimension: s.dimension, Rows: s.rows})
}

func (s *Index) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Index) create(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Dot",
		},
	}
	return s.doJSON(ctx, http.MethodPut, s.collectionURL(), body, nil)
}

func (s *Index) drop(ctx context.Context) error {
	err := s.doJSON(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

func (s *Index) upsert(ctx context.Context, firstRow int, vectors [][]float32) error {
	points := make([]map[string]any, len(vectors))
	for i, v := range vectors {
		points[i] = map[string]any{
			"id":     firstRow + i,
			"vector": v,
		}
	}
	body := map[string]any{"points": points}
	return s.doJSON(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
}

type statusError struct {
	method string
	url    string
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func (s *Index) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Factory creates indexes backed by one Qdrant collection.
type Factory struct {
	Config Config
}

func (f Factory) Kind() string { return Kind }

// New recreates the collection empty with the given vector width.
func (f Factory) New(ctx context.Context, dimension int) (vectorstore.Index, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	s := newIndex(f.Config, dimension, 0)
	if err := s.drop(ctx); err != nil {
		return nil, err
	}
	if err := s.create(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (f Factory) Load(_ context.Context, blob []byte) (vectorstore.Index, error) {
	var st state
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, fmt.Errorf("decode qdrant index state: %w", err)
	}
	if st.Dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	if st.Collection != f.Config.Collection {
		return nil, fmt.Errorf("snapshot refers to collection %q, configured collection is %q", st.Collection, f.Config.Collection)
	}
	return newIndex(f.Config, st.Dimension, st.Rows), nil
}
