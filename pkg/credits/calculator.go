// Package credits converts token counts into normalized quota credits.
package credits

import (
	"math"

	"github.com/pario-ai/headroom/pkg/models"
)

// Calculator prices usage events with a rate table.
type Calculator struct {
	table    Table
	fallback Rate
	// CacheCreationAsInput bills cache-creation tokens as input tokens.
	CacheCreationAsInput bool
}

// NewCalculator creates a Calculator. fallback prices events whose model
// family is not in table.
func NewCalculator(table Table, fallback Rate) *Calculator {
	if table == nil {
		table = DefaultTable()
	}
	return &Calculator{table: table, fallback: fallback}
}

// Credits returns the credits consumed by e. estimated is true when the
// fallback rate was used.
func (c *Calculator) Credits(e models.UsageEvent) (credits int64, estimated bool) {
	rate, ok := c.table.Lookup(e.Model)
	if !ok {
		rate = c.fallback
		estimated = true
	}

	input := e.InputTokens
	if c.CacheCreationAsInput {
		input += e.CacheCreationTokens
	}
	return Ceil(float64(input)*rate.Input + float64(e.OutputTokens)*rate.Output), estimated
}

// Ceil rounds v up to an integer credit count. A value within float error of
// a positive integer is that integer; any other positive value rounds up.
func Ceil(v float64) int64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if r := math.Round(v); r >= 1 && math.Abs(v-r) < 1e-9*math.Max(1, r) {
		return int64(r)
	}
	return int64(math.Ceil(v))
}
