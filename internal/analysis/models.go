package analysis

import (
	"fmt"

	apperr "github.com/docshield/redactor/internal/errors"
)

// ModelLimits declares a supported analysis model's rate ceilings and pricing.
// Caller-supplied limits are clamped to the ceilings; an unspecified limit
// defaults to a conservative fraction of the ceiling.
type ModelLimits struct {
	// MaxTokensPerMinute is the model's hard TPM ceiling.
	MaxTokensPerMinute int
	// MaxRequestsPerMinute is the model's hard RPM ceiling.
	MaxRequestsPerMinute int
	// InputTokenRate and OutputTokenRate are dollars per token.
	InputTokenRate  float64
	OutputTokenRate float64
	// Encoding names the tokenizer used for deterministic estimates.
	Encoding string
}

// defaultLimitFraction is applied when the caller leaves a limit unset.
const defaultLimitFraction = 5

var modelCatalog = map[string]ModelLimits{
	"gpt-4.1-nano": {
		MaxTokensPerMinute:   150_000,
		MaxRequestsPerMinute: 1_000,
		InputTokenRate:       0.10 / 1_000_000,
		OutputTokenRate:      0.40 / 1_000_000,
		Encoding:             "cl100k_base",
	},
	"gpt-4.1-mini": {
		MaxTokensPerMinute:   150_000,
		MaxRequestsPerMinute: 1_000,
		InputTokenRate:       0.40 / 1_000_000,
		OutputTokenRate:      1.60 / 1_000_000,
		Encoding:             "cl100k_base",
	},
	"gpt-4.1": {
		MaxTokensPerMinute:   30_000,
		MaxRequestsPerMinute: 500,
		InputTokenRate:       2.00 / 1_000_000,
		OutputTokenRate:      8.00 / 1_000_000,
		Encoding:             "cl100k_base",
	},
	"gpt-4o-mini": {
		MaxTokensPerMinute:   200_000,
		MaxRequestsPerMinute: 2_000,
		InputTokenRate:       0.15 / 1_000_000,
		OutputTokenRate:      0.60 / 1_000_000,
		Encoding:             "cl100k_base",
	},
}

// LookupModel resolves a model name to its limits. Unknown names are a
// configuration error surfaced at construction time.
func LookupModel(name string) (ModelLimits, error) {
	limits, ok := modelCatalog[name]
	if !ok {
		return ModelLimits{}, apperr.Wrap(
			fmt.Errorf("model %q is not in the supported model catalog", name),
			apperr.ErrUnsupportedModel.Code, apperr.ErrUnsupportedModel.Message,
		)
	}
	return limits, nil
}

// clampLimit applies the model ceiling to a caller-requested limit. Zero or
// negative means unspecified and yields the default fraction of the ceiling.
func clampLimit(requested, ceiling int) int {
	if requested <= 0 {
		return ceiling / defaultLimitFraction
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}
