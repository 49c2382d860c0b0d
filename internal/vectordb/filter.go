package vectordb

import (
	"context"

	"docubrain/internal/vectorstore"
)

// Filter chooses which index hits a search returns. keep is nil when no
// file filter applies.
type Filter interface {
	Select(ctx context.Context, idx vectorstore.Index, query []float32, k int, keep func(row int) bool) ([]vectorstore.Hit, error)
}

// PostFilter takes the top k rows first and then drops rows that fail keep,
// so a narrow filter can return fewer than k hits even when more matching
// rows exist further down the ranking.
type PostFilter struct{}

func (PostFilter) Select(ctx context.Context, idx vectorstore.Index, query []float32, k int, keep func(row int) bool) ([]vectorstore.Hit, error) {
	hits, err := idx.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if keep == nil {
		return hits, nil
	}
	out := hits[:0]
	for _, h := range hits {
		if keep(h.Row) {
			out = append(out, h)
		}
	}
	return out, nil
}

// PreFilter ranks every row, drops rows that fail keep, then takes the top k.
type PreFilter struct{}

func (PreFilter) Select(ctx context.Context, idx vectorstore.Index, query []float32, k int, keep func(row int) bool) ([]vectorstore.Hit, error) {
	if keep == nil {
		return idx.Search(ctx, query, k)
	}
	hits, err := idx.Search(ctx, query, idx.Len())
	if err != nil {
		return nil, err
	}
	out := make([]vectorstore.Hit, 0, k)
	for _, h := range hits {
		if len(out) == k {
			break
		}
		if keep(h.Row) {
			out = append(out, h)
		}
	}
	return out, nil
}

// FilterByName maps a config value to a Filter; unknown names get PostFilter.
func FilterByName(name string) Filter {
	if name == "pre" {
		return PreFilter{}
	}
	return PostFilter{}
}
