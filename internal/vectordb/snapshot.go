package vectordb

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"docubrain/internal/domain"
)

const snapshotVersion = 1

// Snapshot is the whole persisted state of a DB.
type Snapshot struct {
	Version     int
	Documents   []string
	Metadata    []domain.Metadata
	NextChunkID int
	IndexKind   string
	Index       []byte // nil when no index exists
}

// Persister stores and restores snapshots.
type Persister interface {
	// Load returns nil, nil when nothing has been saved yet.
	Load() (*Snapshot, error)
	Save(snap *Snapshot) error
}

// FileStore keeps a gob-encoded snapshot in a single file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

func (s *FileStore) Load() (*Snapshot, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var snap Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.Path, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return &snap, nil
}

// Save writes to a temporary file next to Path and renames it into place.
func (s *FileStore) Save(snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp := s.Path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.Path)
}
