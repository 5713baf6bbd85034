package credits

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateEmptyInput(t *testing.T) {
	assert.Equal(t, 0, Estimate("gpt-4o", "", false))
	assert.Equal(t, 0, Estimate("gpt-4o", "", true))
}

func TestEstimateNeverZeroForNonEmptyInput(t *testing.T) {
	for model := range baseCostTable {
		assert.Greater(t, Estimate(model, "x", false), 0, "model %s", model)
	}
}

func TestEstimateMonotoneInInputLength(t *testing.T) {
	prev := 0
	for _, n := range []int{1, 100, 499, 500, 501, 1500, 10000} {
		cost := Estimate("sonnet", strings.Repeat("a", n), false)
		assert.GreaterOrEqual(t, cost, prev, "length %d", n)
		prev = cost
	}
}

func TestEstimateUnitRounding(t *testing.T) {
	// One unit up to UnitSize characters, two after.
	assert.Equal(t, BaseCost("sonnet"), Estimate("sonnet", strings.Repeat("a", UnitSize), false))
	assert.Equal(t, 2*BaseCost("sonnet"), Estimate("sonnet", strings.Repeat("a", UnitSize+1), false))
}

func TestEstimateCustomPromptSurcharge(t *testing.T) {
	input := "summarize this text"
	standard := Estimate("gpt-4o", input, false)
	custom := Estimate("gpt-4o", input, true)
	assert.Equal(t, standard*CustomPromptMultiplier, custom)
}

func TestActualCost(t *testing.T) {
	assert.Equal(t, 0, ActualCost("gpt-4o", 0, false))
	assert.Equal(t, BaseCost("gpt-4o"), ActualCost("gpt-4o", 1, false))
	assert.Equal(t, BaseCost("gpt-4o"), ActualCost("gpt-4o", TokensPerUnit, false))
	assert.Equal(t, 2*BaseCost("gpt-4o"), ActualCost("gpt-4o", TokensPerUnit+1, false))
	assert.Equal(t, 2*BaseCost("gpt-4o"), ActualCost("gpt-4o", TokensPerUnit, true))
}

func TestBaseCostExactAndFamilyMatch(t *testing.T) {
	assert.Equal(t, 10, BaseCost("opus"))
	// Dated identifier falls back to the family prefix.
	assert.Equal(t, 1, BaseCost("gpt-4o-mini-2024-07-18"))
	assert.Equal(t, 3, BaseCost("gpt-4o-2024-11-20"))
	// Unknown models get the conservative default.
	assert.Equal(t, defaultBaseCost, BaseCost("mystery-model-9000"))
}

func TestCheapestModelIsStable(t *testing.T) {
	first := CheapestModel()
	assert.Equal(t, 1, BaseCost(first))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, CheapestModel())
	}
}

func TestCountTokensGrowsWithText(t *testing.T) {
	short := CountTokens("hello world")
	long := CountTokens(strings.Repeat("hello world ", 50))
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)
}
