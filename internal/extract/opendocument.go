package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// odfContentPath is the path to the main content inside OpenDocument zips.
const odfContentPath = "content.xml"

var (
	odfSelfClosing = regexp.MustCompile(`<text:(?:p|h)(?:\s[^>]*)?/>`)
	// odfBlock matches a text:p or text:h element; nested spans are kept in the capture.
	odfBlock   = regexp.MustCompile(`(?s)<text:(p|h)(?:\s[^>]*)?>(.*?)</text:(?:p|h)>`)
	odfRow     = regexp.MustCompile(`(?s)<table:table-row(?:\s[^>]*)?>(.*?)</table:table-row>`)
	odfTable   = regexp.MustCompile(`(?s)<table:table(?:\s[^>]*)?>(.*?)</table:table>`)
	odfLineBrk = regexp.MustCompile(`<text:line-break\s*/>`)
	anyTag     = regexp.MustCompile(`<[^>]+>`)
)

func readODFContent(content []byte, kind string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	data, err := readZipFile(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if data == nil {
		return "", fmt.Errorf("extract %s: %s not found", kind, odfContentPath)
	}
	s := odfSelfClosing.ReplaceAllString(string(data), "")
	return odfLineBrk.ReplaceAllString(s, "\n"), nil
}

// innerText strips markup and unescapes entities.
func innerText(xml string) string {
	return strings.TrimSpace(html.UnescapeString(anyTag.ReplaceAllString(xml, "")))
}

// extractODP extracts text from .odp bytes: every heading and paragraph, in document order,
// separated by blank lines.
func extractODP(content []byte) (string, error) {
	s, err := readODFContent(content, "ODP")
	if err != nil {
		return "", err
	}
	var paras []string
	for _, m := range odfBlock.FindAllStringSubmatch(s, -1) {
		paras = append(paras, innerText(m[2]))
	}
	return joinParagraphs(paras), nil
}

// extractODS extracts text from .ods bytes. Each table row becomes one line with cells
// separated by tabs; tables are separated by blank lines.
func extractODS(content []byte) (string, error) {
	s, err := readODFContent(content, "ODS")
	if err != nil {
		return "", err
	}
	var tables []string
	for _, tm := range odfTable.FindAllStringSubmatch(s, -1) {
		var lines []string
		for _, rm := range odfRow.FindAllStringSubmatch(tm[1], -1) {
			var cells []string
			for _, cm := range odfBlock.FindAllStringSubmatch(rm[1], -1) {
				if t := innerText(cm[2]); t != "" {
					cells = append(cells, t)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, "\t"))
			}
		}
		tables = append(tables, strings.Join(lines, "\n"))
	}
	return joinParagraphs(tables), nil
}
