// Package cli provides CLI output formatting for tenderwise.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/tenderwise/internal/indexer"
	"github.com/hyperjump/tenderwise/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json" (case-insensitive).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteResponse writes a query response to w in the given format.
func WriteResponse(w io.Writer, resp models.QueryResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "Query ID:       %s\n", resp.QueryID)
	fmt.Fprintf(w, "Status:         %s\n", resp.Status)
	fmt.Fprintf(w, "Classification: %s\n", resp.Classification)
	fmt.Fprintf(w, "Strategy:       %s\n", resp.Strategy)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%s\n", resp.Answer)
	return nil
}

// WriteIngestResults writes the outcome of one or more ingested files.
func WriteIngestResults(w io.Writer, results []*indexer.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, results)
	}
	for _, r := range results {
		name := ""
		if r.Document != nil {
			name = r.Document.Filename
		}
		tender := ""
		if r.Tender != nil {
			tender = r.Tender.Name
		}
		fmt.Fprintf(w, "Ingested %s into tender %q: %d clauses", name, tender, r.Clauses)
		if r.TenderCreated {
			fmt.Fprint(w, " (new tender)")
		}
		fmt.Fprintln(w)
		if r.ProjectionFailures > 0 {
			fmt.Fprintf(w, "  warning: %d clauses not projected; run 'tenderwise reproject --tender %q'\n", r.ProjectionFailures, tender)
		}
	}
	return nil
}

// WriteTenders lists tenders.
func WriteTenders(w io.Writer, tenders []*models.Tender, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, tenders)
	}
	if len(tenders) == 0 {
		fmt.Fprintln(w, "No tenders.")
		return nil
	}
	for _, t := range tenders {
		fmt.Fprintf(w, "%s  %s  (created %s)\n", t.ID, t.Name, t.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

// WriteStatus writes system status.
func WriteStatus(w io.Writer, st *models.SystemStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Tenders:      %d\n", st.Tenders)
	fmt.Fprintf(w, "Documents:    %d\n", st.Documents)
	fmt.Fprintf(w, "Clauses:      %d\n", st.Clauses)
	fmt.Fprintf(w, "Chunks:       %d\n", st.Chunks)
	fmt.Fprintf(w, "Dimension:    %d\n", st.Dimension)
	fmt.Fprintf(w, "Graph nodes:  %d\n", st.GraphNodes)
	fmt.Fprintf(w, "Keyword docs: %d\n", st.KeywordDocs)
	if lag := st.ProjectionLag(); lag > 0 {
		fmt.Fprintf(w, "Projection lag: %d clauses (run reproject)\n", lag)
	}
	if st.PendingIngests > 0 {
		fmt.Fprintf(w, "Pending ingests: %d\n", st.PendingIngests)
	}
	if len(st.DiskUsage) > 0 {
		names := make([]string, 0, len(st.DiskUsage))
		for n := range st.DiskUsage {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "Disk usage:   %s\n", FormatBytes(st.DiskUsageTotal))
		for _, n := range names {
			fmt.Fprintf(w, "  %-10s %s\n", n, FormatBytes(st.DiskUsage[n]))
		}
	}
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
