// Package query classifies incoming queries and selects a retrieval strategy for them.
// Both steps are pure and deterministic.
package query

import (
	"regexp"
	"strings"

	"github.com/hyperjump/tenderwise/internal/models"
)

// referencePattern matches explicit clause references such as "Clause 5.1" or "section 3.2.1".
var referencePattern = regexp.MustCompile(`(?i)\b(clause|section|appendix)\s+(\d+(?:\.\d+)*)`)

// Classify returns ClassificationExact when the query contains a clause, section or appendix
// reference followed by a number, and ClassificationSemantic otherwise.
func Classify(query string) models.Classification {
	if referencePattern.MatchString(query) {
		return models.ClassificationExact
	}
	return models.ClassificationSemantic
}

// Reference is an explicit clause reference found in a query.
type Reference struct {
	// Kind is "clause", "section" or "appendix".
	Kind string
	// Number is the dotted number, e.g. "5.1".
	Number string
}

// FindReference returns the first reference in query.
func FindReference(query string) (Reference, bool) {
	m := referencePattern.FindStringSubmatch(query)
	if m == nil {
		return Reference{}, false
	}
	return Reference{Kind: strings.ToLower(m[1]), Number: m[2]}, true
}

// FindReferences returns every reference in query in order of appearance, without duplicates.
func FindReferences(query string) []Reference {
	var out []Reference
	seen := make(map[string]bool)
	for _, m := range referencePattern.FindAllStringSubmatch(query, -1) {
		if seen[m[2]] {
			continue
		}
		seen[m[2]] = true
		out = append(out, Reference{Kind: strings.ToLower(m[1]), Number: m[2]})
	}
	return out
}
