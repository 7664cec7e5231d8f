package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	kwanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/tenderwise/internal/models"
)

const (
	fieldTenderID   = "tender_id"
	fieldDocumentID = "document_id"
	fieldNumber     = "number"
	fieldContent    = "content"

	defaultFuzziness = 1
)

// clauseDoc is the indexed form of a clause.
type clauseDoc struct {
	TenderID   string `json:"tender_id"`
	DocumentID string `json:"document_id"`
	Number     string `json:"number"`
	Content    string `json:"content"`
}

// BleveIndex implements ClauseIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory and run reproject.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so clause vocabulary matches exactly.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldContent, textFieldMapping)
	for _, f := range []string{fieldTenderID, fieldDocumentID, fieldNumber} {
		kw := bleve.NewTextFieldMapping()
		kw.Analyzer = kwanalyzer.Name
		docMapping.AddFieldMappingsAt(f, kw)
	}
	im.AddDocumentMapping("clause", docMapping)
	im.DefaultType = "clause"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexClause indexes (or replaces) the clause keyed by its ID.
func (b *BleveIndex) IndexClause(ctx context.Context, node *models.GraphNode) error {
	if node == nil || node.ClauseID == "" {
		return fmt.Errorf("%w: clause id is required", models.ErrValidation)
	}
	return b.index.Index(node.ClauseID, clauseDoc{
		TenderID:   node.TenderID,
		DocumentID: node.DocumentID,
		Number:     node.Number,
		Content:    node.Content,
	})
}

// Search runs a match query over clause content restricted to the tender and returns up to
// limit hits. When opts.FuzzyEnabled is true each query term matches within the edit distance.
func (b *BleveIndex) Search(ctx context.Context, tenderID, query string, limit int, opts *SearchOptions) ([]*Hit, error) {
	if strings.TrimSpace(query) == "" || tenderID == "" || limit <= 0 {
		return nil, nil
	}
	var content blevequery.Query
	if opts != nil && opts.FuzzyEnabled {
		fuzziness := opts.Fuzziness
		if fuzziness <= 0 {
			fuzziness = defaultFuzziness
		}
		content = buildFuzzyQuery(query, fuzziness)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(fieldContent)
		content = mq
	}
	tender := bleve.NewTermQuery(tenderID)
	tender.SetField(fieldTenderID)

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(tender, content))
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Hit, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Hit{ClauseID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, `.,;:!?"'()[]`)
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries over content, one per query term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(fieldContent)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(fieldContent)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of clauses in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
