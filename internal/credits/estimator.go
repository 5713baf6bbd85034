package credits

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// UnitSize is the number of input characters per billing unit when
	// estimating before a run.
	UnitSize = 500

	// TokensPerUnit is the number of provider tokens per billing unit when
	// settling after a run. Roughly equivalent to UnitSize characters.
	TokensPerUnit = 125

	// CustomPromptMultiplier is the flat surcharge for custom-prompt runs,
	// which carry much longer system context than published packages.
	CustomPromptMultiplier = 2
)

// Estimate predicts the credit cost of a run before execution.
// Deterministic and side-effect free: baseCost(model) * ceil(len/UnitSize),
// doubled in custom-prompt mode. Empty input costs 0, but callers reject
// empty input before ever getting here.
func Estimate(model, input string, customPrompt bool) int {
	if len(input) == 0 {
		return 0
	}
	units := (len(input) + UnitSize - 1) / UnitSize
	cost := BaseCost(model) * units
	if customPrompt {
		cost *= CustomPromptMultiplier
	}
	return cost
}

// ActualCost converts the provider-reported token usage of a completed run
// into credits, using the same base cost table as Estimate. Never zero for
// positive token usage.
func ActualCost(model string, tokensUsed int, customPrompt bool) int {
	if tokensUsed <= 0 {
		return 0
	}
	units := (tokensUsed + TokensPerUnit - 1) / TokensPerUnit
	cost := BaseCost(model) * units
	if customPrompt {
		cost *= CustomPromptMultiplier
	}
	return cost
}

var (
	encOnce sync.Once
	encoder *tiktoken.Tiktoken
)

// CountTokens counts tokens in text with the cl100k_base encoding. Used by
// providers that report no usage metadata, so settlement is never billed
// from a guess of zero. Falls back to a 4-chars-per-token heuristic if the
// encoding cannot be loaded.
func CountTokens(text string) int {
	encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoder = enc
		}
	})
	if encoder == nil {
		return (len(text) + 3) / 4
	}
	return len(encoder.Encode(text, nil, nil))
}
