package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMeasureDiskUsage(t *testing.T) {
	dir := t.TempDir()

	f1 := filepath.Join(dir, "tenders.db")
	if err := os.WriteFile(f1, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "bleve")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := MeasureDiskUsage(map[string]string{
		"database":      f1,
		"keyword_index": sub,
		"graph":         filepath.Join(dir, "nonexistent"),
		"uploads":       "",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Total != 8 {
		t.Errorf("total: got %d bytes, want 8", got.Total)
	}
	if got.Paths["database"] != 5 || got.Paths["keyword_index"] != 3 {
		t.Errorf("per path: %+v", got.Paths)
	}
	if got.Paths["graph"] != 0 || got.Paths["uploads"] != 0 {
		t.Errorf("missing and empty paths should be 0: %+v", got.Paths)
	}
}
