package indexer

import (
	"regexp"
	"strings"
)

var blankLine = regexp.MustCompile(`(?m)^[ \t]+$`)

// Preprocess normalizes extracted text before segmentation: line endings become "\n",
// a leading byte order mark is dropped and whitespace-only lines are emptied so they
// separate paragraphs. Paragraph breaks are preserved.
func Preprocess(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankLine.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
