// Package extract parses tender documents into plain text, keeping paragraph breaks ("\n\n")
// so clause segmentation can split on them.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/tenderwise/internal/models"
)

// ErrUnsupportedType is returned for file extensions the extractor cannot parse.
var ErrUnsupportedType = fmt.Errorf("%w: unsupported file type", models.ErrUnsupportedInput)

// Parsed is the result of parsing one file.
type Parsed struct {
	Content  string
	Metadata map[string]string
}

// Parser turns a file into text plus metadata.
type Parser interface {
	Parse(path string) (*Parsed, error)
}

type extractFunc func(content []byte) (string, error)

var extractors = map[string]extractFunc{
	".txt":  extractPlain,
	".md":   extractPlain,
	".rst":  extractPlain,
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
	".pptx": extractPPTX,
	".odp":  extractODP,
	".ods":  extractODS,
	".odt":  extractWithCat,
	".rtf":  extractWithCat,
}

// Extractor extracts plain text from document files. It implements Parser.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext (with leading dot, any case) can be parsed.
func Supported(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// SupportedExtensions returns the parseable extensions, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extractors))
	for ext := range extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Parse reads the file at path and returns its text and metadata (filename, extension, size_bytes).
// The extension is checked before the file is read; unknown extensions fail with ErrUnsupportedType.
func (e *Extractor) Parse(path string) (*Parsed, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedType)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	text, err := e.ExtractBytes(content, ext)
	if err != nil {
		return nil, err
	}
	return &Parsed{
		Content: text,
		Metadata: map[string]string{
			"filename":   filepath.Base(path),
			"extension":  ext,
			"size_bytes": fmt.Sprintf("%d", len(content)),
		},
	}, nil
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := extractors[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%q: %w", ext, ErrUnsupportedType)
	}
	return fn(content)
}

// extractPlain returns content as string, replacing invalid UTF-8 with the replacement character.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\uFFFD"))
	}
	return string(content), nil
}

// joinParagraphs trims each paragraph, drops empty ones and joins the rest with blank lines.
func joinParagraphs(paras []string) string {
	kept := paras[:0:0]
	for _, p := range paras {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
