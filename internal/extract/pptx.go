package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// pptxSlidePathPrefix is the path prefix for slide XML files inside a .pptx zip.
const pptxSlidePathPrefix = "ppt/slides/slide"

var (
	// aParagraph matches one DrawingML <a:p> paragraph (not <a:pPr>).
	aParagraph = regexp.MustCompile(`(?s)<a:p(?:\s[^>]*)?>(.*?)</a:p>`)
	// atTag matches <a:t>text</a:t> with any attributes.
	atTag = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
)

// slideNumber returns N for ppt/slides/slideN.xml, or -1.
func slideNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, pptxSlidePathPrefix), ".xml"))
	if err != nil {
		return -1
	}
	return n
}

// extractPPTX extracts text from .pptx bytes in slide order. Each <a:p> paragraph becomes one
// paragraph of output.
func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract PPTX: not a zip: %w", err)
	}
	var slides []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, pptxSlidePathPrefix) && slideNumber(f.Name) >= 0 {
			slides = append(slides, f)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slideNumber(slides[i].Name) < slideNumber(slides[j].Name) })

	var paras []string
	for _, f := range slides {
		data, err := readZipFile(zr, f.Name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		for _, p := range aParagraph.FindAllStringSubmatch(string(data), -1) {
			var b strings.Builder
			for _, run := range atTag.FindAllStringSubmatch(p[1], -1) {
				b.WriteString(html.UnescapeString(run[1]))
			}
			paras = append(paras, b.String())
		}
	}
	return joinParagraphs(paras), nil
}
