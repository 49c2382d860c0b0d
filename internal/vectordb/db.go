// Package vectordb keeps chunk records and their similarity index in positional
// lock-step: record i in the store is row i in the index.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docubrain/internal/domain"
	"docubrain/internal/embedding"
	"docubrain/internal/vectorstore"
)

// ErrPersist marks a failed snapshot write. The mutation that preceded it is
// kept in memory, so callers should report it as a warning.
var ErrPersist = errors.New("vector database snapshot not saved")

// DB is the document store and similarity index pair.
type DB struct {
	mu          sync.Mutex
	embedder    embedding.Embedder
	factory     vectorstore.Factory
	persister   Persister
	filter      Filter
	logger      *slog.Logger
	now         func() time.Time
	index       vectorstore.Index
	records     []domain.Record
	nextChunkID int
	// stale is set when records exist but the index lost its rows and has
	// to be rebuilt from the record texts.
	stale bool
}

// Option customises a DB.
type Option func(*DB)

// WithFilter replaces the default PostFilter.
func WithFilter(f Filter) Option { return func(db *DB) { db.filter = f } }

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *slog.Logger) Option { return func(db *DB) { db.logger = l } }

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option { return func(db *DB) { db.now = now } }

// Open creates a DB and restores the last snapshot, if any. A snapshot that
// cannot be read is logged and the DB starts empty.
func Open(ctx context.Context, embedder embedding.Embedder, factory vectorstore.Factory, persister Persister, opts ...Option) *DB {
	db := &DB{
		embedder:    embedder,
		factory:     factory,
		persister:   persister,
		filter:      PostFilter{},
		logger:      slog.Default(),
		now:         time.Now,
		nextChunkID: 1,
	}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.load(ctx); err != nil {
		db.logger.Error("failed to load vector database, starting empty", "error", err)
		db.index = nil
		db.records = nil
		db.nextChunkID = 1
		db.stale = false
	}
	return db
}

// AddDocuments embeds chunks and appends them to the index and the store.
// Nothing is mutated unless every chunk was embedded and accepted by the index.
func (db *DB) AddDocuments(ctx context.Context, chunks []string, fileName string) error {
	if len(chunks) == 0 {
		return nil
	}
	raw, err := db.embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(raw) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(raw), len(chunks))
	}
	vectors, err := embedding.NormalizeAll(raw)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.reindex(ctx); err != nil {
		return err
	}
	created := false
	if db.index == nil {
		idx, err := db.factory.New(ctx, len(vectors[0]))
		if err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		db.index = idx
		created = true
	}
	if err := db.index.Add(ctx, vectors); err != nil {
		if created {
			db.index = nil
		}
		return fmt.Errorf("add to index: %w", err)
	}
	ts := db.now()
	for _, text := range chunks {
		db.records = append(db.records, domain.Record{
			Text: text,
			Metadata: domain.Metadata{
				FileName:  fileName,
				ChunkID:   db.nextChunkID,
				Timestamp: ts,
			},
		})
		db.nextChunkID++
	}
	return db.save()
}

// Search returns the records nearest to query. A nil selectedFiles searches
// every file; otherwise only records from the listed files are returned.
func (db *DB) Search(ctx context.Context, query string, k int, selectedFiles []string) ([]domain.SearchResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.records) == 0 || k <= 0 {
		return nil, nil
	}
	if err := db.reindex(ctx); err != nil {
		return nil, err
	}
	if db.index == nil {
		return nil, nil
	}
	raw, err := db.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(raw))
	}
	q := raw[0]
	if err := embedding.Normalize(q); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	var keep func(row int) bool
	if selectedFiles != nil {
		allowed := make(map[string]struct{}, len(selectedFiles))
		for _, f := range selectedFiles {
			allowed[f] = struct{}{}
		}
		keep = func(row int) bool {
			_, ok := allowed[db.records[row].Metadata.FileName]
			return ok
		}
	}
	if k > len(db.records) {
		k = len(db.records)
	}
	hits, err := db.filter.Select(ctx, db.index, q, k, keep)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Row < 0 || h.Row >= len(db.records) {
			continue
		}
		rec := db.records[h.Row]
		results = append(results, domain.SearchResult{Text: rec.Text, Score: h.Score, Metadata: rec.Metadata})
	}
	return results, nil
}

// RemoveDocumentsByFile drops every record of fileName and rebuilds the index
// from the survivors. It returns how many records were removed. On failure the
// records are unchanged and the index again matches them.
func (db *DB) RemoveDocumentsByFile(ctx context.Context, fileName string) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	removed := make(map[int]bool)
	var survivors []domain.Record
	for i, rec := range db.records {
		if rec.Metadata.FileName == fileName {
			removed[i] = true
			continue
		}
		survivors = append(survivors, rec)
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if len(survivors) == 0 {
		if d, ok := db.index.(vectorstore.Dropper); ok {
			if err := d.Drop(ctx); err != nil {
				db.logger.Warn("failed to drop empty index", "error", err)
			}
		}
		db.records = nil
		db.index = nil
		db.stale = false
		return len(removed), db.save()
	}

	if err := db.reindex(ctx); err != nil {
		return 0, err
	}
	var vectors [][]float32
	if src, ok := db.index.(vectorstore.VectorSource); ok {
		for i, v := range src.Vectors() {
			if !removed[i] {
				vectors = append(vectors, v)
			}
		}
	} else {
		texts := make([]string, len(survivors))
		for i, rec := range survivors {
			texts[i] = rec.Text
		}
		raw, err := db.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("re-embed remaining chunks: %w", err)
		}
		if vectors, err = embedding.NormalizeAll(raw); err != nil {
			return 0, err
		}
	}
	if len(vectors) != len(survivors) {
		return 0, fmt.Errorf("rebuild has %d vectors for %d records", len(vectors), len(survivors))
	}
	if err := db.index.Rebuild(ctx, vectors); err != nil {
		// The index may have dropped rows before failing, so it can no longer
		// be trusted to match the unchanged records.
		db.index = nil
		db.stale = true
		if rerr := db.reindex(ctx); rerr != nil {
			db.logger.Error("index unusable until it is rebuilt", "error", rerr, "records", len(db.records))
		}
		return 0, fmt.Errorf("rebuild index: %w", err)
	}
	db.records = survivors
	return len(removed), db.save()
}

// reindex builds a fresh index from the record texts when the DB is stale.
// Must be called with mu held.
func (db *DB) reindex(ctx context.Context) error {
	if !db.stale {
		return nil
	}
	if len(db.records) == 0 {
		db.index = nil
		db.stale = false
		return nil
	}
	texts := make([]string, len(db.records))
	for i, rec := range db.records {
		texts[i] = rec.Text
	}
	raw, err := db.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("reindex: embed chunks: %w", err)
	}
	if len(raw) != len(texts) {
		return fmt.Errorf("reindex: embedder returned %d vectors for %d chunks", len(raw), len(texts))
	}
	vectors, err := embedding.NormalizeAll(raw)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	idx, err := db.factory.New(ctx, len(vectors[0]))
	if err != nil {
		return fmt.Errorf("reindex: create index: %w", err)
	}
	if err := idx.Add(ctx, vectors); err != nil {
		return fmt.Errorf("reindex: add to index: %w", err)
	}
	db.index = idx
	db.stale = false
	db.logger.Info("index rebuilt from stored records", "records", len(db.records))
	return nil
}

// Len returns the number of stored records.
func (db *DB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.records)
}

// IndexLen returns the number of index rows, 0 when the index is absent.
func (db *DB) IndexLen() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.index == nil {
		return 0
	}
	return db.index.Len()
}

// HasIndex reports whether an index currently exists.
func (db *DB) HasIndex() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.index != nil
}

// Files returns the distinct file names in the store, in first-seen order.
func (db *DB) Files() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	seen := make(map[string]struct{})
	var files []string
	for _, rec := range db.records {
		if _, ok := seen[rec.Metadata.FileName]; ok {
			continue
		}
		seen[rec.Metadata.FileName] = struct{}{}
		files = append(files, rec.Metadata.FileName)
	}
	return files
}

// Records returns a copy of the stored records in position order.
func (db *DB) Records() []domain.Record {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]domain.Record, len(db.records))
	copy(out, db.records)
	return out
}

// save writes a snapshot. Must be called with mu held.
func (db *DB) save() error {
	if db.persister == nil {
		return nil
	}
	snap := &Snapshot{
		Version:     snapshotVersion,
		Documents:   make([]string, len(db.records)),
		Metadata:    make([]domain.Metadata, len(db.records)),
		NextChunkID: db.nextChunkID,
	}
	for i, rec := range db.records {
		snap.Documents[i] = rec.Text
		snap.Metadata[i] = rec.Metadata
	}
	if db.index != nil {
		blob, err := db.index.MarshalBinary()
		if err != nil {
			db.logger.Warn("failed to serialize index", "error", err)
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
		snap.IndexKind = db.factory.Kind()
		snap.Index = blob
	}
	if err := db.persister.Save(snap); err != nil {
		db.logger.Warn("failed to save vector database", "error", err, "records", len(db.records))
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (db *DB) load(ctx context.Context) error {
	if db.persister == nil {
		return nil
	}
	snap, err := db.persister.Load()
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	if len(snap.Documents) != len(snap.Metadata) {
		return fmt.Errorf("snapshot has %d documents but %d metadata entries", len(snap.Documents), len(snap.Metadata))
	}
	records := make([]domain.Record, len(snap.Documents))
	maxID := 0
	for i := range snap.Documents {
		records[i] = domain.Record{Text: snap.Documents[i], Metadata: snap.Metadata[i]}
		if snap.Metadata[i].ChunkID > maxID {
			maxID = snap.Metadata[i].ChunkID
		}
	}
	var idx vectorstore.Index
	if snap.Index != nil {
		if snap.IndexKind != db.factory.Kind() {
			return fmt.Errorf("snapshot index kind %q does not match configured %q", snap.IndexKind, db.factory.Kind())
		}
		if idx, err = db.factory.Load(ctx, snap.Index); err != nil {
			return fmt.Errorf("load index: %w", err)
		}
		if idx.Len() != len(records) {
			return fmt.Errorf("snapshot index has %d rows for %d records", idx.Len(), len(records))
		}
	}
	db.index = idx
	db.records = records
	// Saved while the index was being recovered; rebuild it on first use.
	db.stale = idx == nil && len(records) > 0
	db.nextChunkID = snap.NextChunkID
	if db.nextChunkID <= maxID {
		db.nextChunkID = maxID + 1
	}
	db.logger.Info("vector database loaded", "records", len(records), "index", snap.IndexKind)
	return nil
}
