package indexer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/pkg/utils"
)

const (
	// ChunkMethod is recorded on every clause produced by ParagraphChunker.
	ChunkMethod = "clause_heuristic"

	metaKeyChunkMethod  = "chunk_method"
	metaKeyClauseNumber = "clause_number"

	paragraphSeparator = "\n\n"
	minSegmentLength   = 5
	generatedPrefix    = "GEN-"
)

// Segmenter splits document text into clause units.
type Segmenter interface {
	Segment(content string, base map[string]string) []models.ClauseUnit
}

// ParagraphChunker treats every blank-line separated paragraph as one clause.
type ParagraphChunker struct{}

// NewParagraphChunker returns the paragraph segmenter.
func NewParagraphChunker() *ParagraphChunker {
	return &ParagraphChunker{}
}

// Segment implements Segmenter.
func (ParagraphChunker) Segment(content string, base map[string]string) []models.ClauseUnit {
	return Chunk(content, base)
}

// Chunk splits content on "\n\n", trims each segment and drops segments shorter than
// five characters. Surviving units are indexed 0..n-1 with no gaps and numbered GEN-1..GEN-n.
// base is copied into each unit's metadata, never modified.
func Chunk(content string, base map[string]string) []models.ClauseUnit {
	var units []models.ClauseUnit
	for _, seg := range strings.Split(content, paragraphSeparator) {
		seg = strings.TrimSpace(seg)
		if utf8.RuneCountInString(seg) < minSegmentLength {
			continue
		}
		i := len(units)
		number := generatedPrefix + strconv.Itoa(i+1)

		meta := make(map[string]string, len(base)+2)
		for k, v := range base {
			meta[k] = v
		}
		meta[metaKeyChunkMethod] = ChunkMethod
		meta[metaKeyClauseNumber] = number

		units = append(units, models.ClauseUnit{
			Content:      seg,
			Index:        i,
			ClauseNumber: number,
			Metadata:     meta,
			TokenCount:   utils.EstimateTokens(seg),
		})
	}
	return units
}
