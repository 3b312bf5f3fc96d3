package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectoryFindsPDFsRecursively(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.pdf"))
	touch(t, filepath.Join(root, "a.PDF"))
	touch(t, filepath.Join(root, "sub", "c.pdf"))
	touch(t, filepath.Join(root, "notes.txt"))

	paths, err := ScanDirectory(root, true)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("got %d paths, want 3: %v", len(paths), paths)
	}
	// Deterministic order.
	for i := 1; i < len(paths); i++ {
		if paths[i-1] >= paths[i] {
			t.Errorf("not sorted: %v", paths)
		}
	}
}

func TestScanDirectorySkipsHidden(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "visible.pdf"))
	touch(t, filepath.Join(root, ".hidden.pdf"))
	touch(t, filepath.Join(root, ".cache", "nested.pdf"))

	paths, err := ScanDirectory(root, true)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "visible.pdf" {
		t.Fatalf("hidden files not skipped: %v", paths)
	}

	all, err := ScanDirectory(root, false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("skipHidden=false got %d paths, want 3: %v", len(all), all)
	}
}

func TestScanDirectoryEmpty(t *testing.T) {
	paths, err := ScanDirectory(t.TempDir(), true)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("empty dir produced %v", paths)
	}
}
