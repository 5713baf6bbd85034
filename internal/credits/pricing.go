package credits

import "strings"

// baseCostTable maps model identifiers to their base credit cost per billing
// unit. Static configuration, never mutated at runtime.
var baseCostTable = map[string]int{
	"gemini-1.5-flash": 1,
	"gemini-1.5-pro":   3,
	"gpt-4o-mini":      1,
	"gpt-4o":           3,
	"gpt-4-turbo":      4,
	"sonnet":           3,
	"opus":             10,
}

// modelFamilyCost maps model family prefixes to a base cost, for dated or
// versioned identifiers not listed exactly (e.g. "gpt-4o-2024-11-20").
// Longest prefix wins so "gpt-4o-mini" beats "gpt-4o".
var modelFamilyCost = map[string]int{
	"gemini-1.5-flash": 1,
	"gemini":           3,
	"gpt-4o-mini":      1,
	"gpt-4o":           3,
	"gpt-4":            4,
	"sonnet":           3,
	"opus":             10,
}

// defaultBaseCost is used for unknown models. Conservative on purpose: an
// unrecognized model must not be billed at the cheap rate.
const defaultBaseCost = 10

// BaseCost returns the per-unit credit cost for a model.
// Tries exact match, then family prefix match (longest prefix wins), then
// the conservative default.
func BaseCost(model string) int {
	if c, ok := baseCostTable[model]; ok {
		return c
	}

	bestPrefix := ""
	bestCost := 0
	for prefix, c := range modelFamilyCost {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix = prefix
			bestCost = c
		}
	}
	if bestPrefix != "" {
		return bestCost
	}

	return defaultBaseCost
}

// CheapestModel returns the model with the lowest base cost. Anonymous runs
// are pinned to it. Ties break lexicographically so the result is stable.
func CheapestModel() string {
	best := ""
	bestCost := 0
	for model, c := range baseCostTable {
		if best == "" || c < bestCost || (c == bestCost && model < best) {
			best = model
			bestCost = c
		}
	}
	return best
}

// KnownModel reports whether a model id resolves to an exact table entry.
func KnownModel(model string) bool {
	_, ok := baseCostTable[model]
	return ok
}
