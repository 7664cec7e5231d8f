// Package fileid computes content checksums for ingested files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const prefix = "sha256:"

// Checksum returns a stable content identifier for the bytes read from r.
// Identical content always yields the same checksum, regardless of file name.
func Checksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// FileChecksum returns the checksum of the file at path.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return Checksum(f)
}
