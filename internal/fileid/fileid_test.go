package fileid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChecksum(t *testing.T) {
	id1, err := Checksum(strings.NewReader("clause text"))
	if err != nil {
		t.Fatal(err)
	}
	id2, _ := Checksum(strings.NewReader("clause text"))
	if id1 != id2 {
		t.Errorf("same content should give same checksum: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("checksum should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+64 {
		t.Errorf("unexpected length: %q", id1)
	}
	other, _ := Checksum(strings.NewReader("other text"))
	if other == id1 {
		t.Error("different content should give different checksums")
	}
}

func TestFileChecksum_independentOfName(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.txt")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("same bytes"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	ca, err := FileChecksum(a)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := FileChecksum(b)
	if err != nil {
		t.Fatal(err)
	}
	if ca != cb {
		t.Errorf("checksums differ: %q vs %q", ca, cb)
	}
}

func TestFileChecksum_missing(t *testing.T) {
	if _, err := FileChecksum("/nonexistent/file.md"); err == nil {
		t.Error("expected error for missing file")
	}
}
