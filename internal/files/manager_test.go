package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveListDelete(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	a, err := m.Save("/some/where/report.pdf", []byte("aaaa"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := m.Save("report.pdf", []byte("bb"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if a == b {
		t.Fatalf("two uploads of the same file got the same name %q", a)
	}
	for _, name := range []string{a, b} {
		prefix, rest, ok := strings.Cut(name, "_")
		if !ok || len(prefix) != 8 || rest != "report.pdf" {
			t.Errorf("unexpected stored name %q", name)
		}
	}
	os.WriteFile(filepath.Join(m.Dir(), "notes.txt"), []byte("x"), 0o644)

	names, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 pdfs, got %v", names)
	}
	if names[0] > names[1] {
		t.Errorf("list not sorted: %v", names)
	}

	ok, err := m.Delete(a)
	if err != nil || !ok {
		t.Fatalf("delete: %v, %v", ok, err)
	}
	ok, err = m.Delete(a)
	if err != nil || ok {
		t.Errorf("second delete should report false, got %v, %v", ok, err)
	}
	names, _ = m.List()
	if len(names) != 1 || names[0] != b {
		t.Errorf("unexpected files after delete: %v", names)
	}
}

func TestDelete_StaysInsideDataDir(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "outside.pdf")
	os.WriteFile(outside, []byte("keep"), 0o644)

	m, _ := NewManager(filepath.Join(dir, "data"))
	if ok, _ := m.Delete("../outside.pdf"); ok {
		t.Error("delete escaped the data directory")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside data dir was touched: %v", err)
	}
}

func TestImportAndTotalSize(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "big.pdf")
	os.WriteFile(src, make([]byte, 1024*1024), 0o644)

	m, _ := NewManager(filepath.Join(dir, "data"))
	if _, err := m.Import(src); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := m.Import(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected error importing a missing file")
	}
	size, err := m.TotalSizeMB()
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != 1 {
		t.Errorf("expected 1 MB, got %f", size)
	}
}
