package query

import "github.com/hyperjump/tenderwise/internal/models"

// Select maps a classification to its retrieval strategy.
func Select(c models.Classification) models.Strategy {
	switch c {
	case models.ClassificationExact:
		return models.StrategyExactLookup
	case models.ClassificationSemantic:
		return models.StrategyVector
	default:
		return models.StrategyHybrid
	}
}

// SelectWithOverride returns override when the caller asked for a specific strategy,
// otherwise Select(c).
func SelectWithOverride(c models.Classification, override models.Strategy) models.Strategy {
	if override != models.StrategyNone {
		return override
	}
	return Select(c)
}
