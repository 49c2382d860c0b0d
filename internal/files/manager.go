// Package files keeps uploaded PDFs in the data directory.
package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const pdfExt = ".pdf"

// Manager stores documents under a single directory. Stored names carry a
// short random prefix so repeated uploads of the same file never collide.
type Manager struct {
	dataDir string
}

// NewManager creates the data directory if needed.
func NewManager(dataDir string) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Manager{dataDir: dataDir}, nil
}

// Dir returns the data directory.
func (m *Manager) Dir() string { return m.dataDir }

// Path returns the absolute location of a stored file.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dataDir, filepath.Base(name))
}

// Save writes data as <id>_<base name of src> and returns the stored name.
func (m *Manager) Save(srcName string, data []byte) (string, error) {
	base := filepath.Base(srcName)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", srcName)
	}
	name := uuid.NewString()[:8] + "_" + base
	if err := os.WriteFile(filepath.Join(m.dataDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("save %s: %w", base, err)
	}
	return name, nil
}

// Import copies the file at path into the data directory.
func (m *Manager) Import(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return m.Save(path, data)
}

// List returns the stored PDF names, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), pdfExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a stored file. It reports false when the file did not exist.
func (m *Manager) Delete(name string) (bool, error) {
	err := os.Remove(m.Path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("delete %s: %w", name, err)
}

// TotalSizeMB sums the size of all stored PDFs in mebibytes.
func (m *Manager) TotalSizeMB() (float64, error) {
	names, err := m.List()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, name := range names {
		info, err := os.Stat(filepath.Join(m.dataDir, name))
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return float64(total) / 1024 / 1024, nil
}
