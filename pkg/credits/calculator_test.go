package credits

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/headroom/pkg/models"
)

func TestCreditsSonnetScenario(t *testing.T) {
	c := NewCalculator(DefaultTable(), Rate{})
	got, estimated := c.Credits(models.UsageEvent{
		Model:        models.ModelSonnet,
		InputTokens:  1_000_000,
		OutputTokens: 2_000,
	})
	assert.Equal(t, int64(404_000), got)
	assert.False(t, estimated)
}

func TestCreditsRoundsUp(t *testing.T) {
	c := NewCalculator(DefaultTable(), Rate{})
	// 1 opus output token = 50/15 = 3.33 credits.
	got, _ := c.Credits(models.UsageEvent{Model: models.ModelOpus, OutputTokens: 1})
	assert.Equal(t, int64(4), got)

	got, _ = c.Credits(models.UsageEvent{Model: models.ModelHaiku, InputTokens: 1})
	assert.Equal(t, int64(1), got)
}

func TestCreditsIgnoresCacheTokens(t *testing.T) {
	c := NewCalculator(DefaultTable(), Rate{})
	got, _ := c.Credits(models.UsageEvent{
		Model:               models.ModelSonnet,
		InputTokens:         15,
		CacheReadTokens:     1_000_000,
		CacheCreationTokens: 1_000_000,
	})
	assert.Equal(t, int64(6), got)
}

func TestCreditsCacheCreationAsInput(t *testing.T) {
	c := NewCalculator(DefaultTable(), Rate{})
	c.CacheCreationAsInput = true
	got, _ := c.Credits(models.UsageEvent{
		Model:               models.ModelSonnet,
		InputTokens:         15,
		CacheCreationTokens: 15,
		CacheReadTokens:     1_000,
	})
	assert.Equal(t, int64(12), got)
}

func TestCreditsUnknownModelUsesFallback(t *testing.T) {
	c := NewCalculator(DefaultTable(), Rate{})
	got, estimated := c.Credits(models.UsageEvent{
		Model:        models.ModelUnknown,
		InputTokens:  5_000,
		OutputTokens: 5_000,
	})
	assert.Zero(t, got)
	assert.True(t, estimated)

	opus := DefaultTable()[models.ModelOpus]
	c = NewCalculator(DefaultTable(), opus)
	got, estimated = c.Credits(models.UsageEvent{Model: models.ModelUnknown, InputTokens: 15})
	assert.Equal(t, int64(10), got)
	assert.True(t, estimated)
}

func TestCreditsMonotoneAndCeiling(t *testing.T) {
	c := NewCalculator(DefaultTable(), Rate{})
	for _, m := range []models.ModelID{models.ModelOpus, models.ModelSonnet, models.ModelHaiku} {
		rate := DefaultTable()[m]
		var prevIn int64
		for in := int64(0); in < 400; in += 7 {
			var prevOut int64 = -1
			for out := int64(0); out < 400; out += 13 {
				e := models.UsageEvent{Model: m, InputTokens: in, OutputTokens: out}
				got, _ := c.Credits(e)
				raw := float64(in)*rate.Input + float64(out)*rate.Output
				require.GreaterOrEqual(t, float64(got), raw-1e-6, "ceiling %s in=%d out=%d", m, in, out)
				require.Less(t, float64(got), raw+1, "ceiling %s in=%d out=%d", m, in, out)
				require.GreaterOrEqual(t, got, prevOut, "monotone in output")
				prevOut = got
			}
			first, _ := c.Credits(models.UsageEvent{Model: m, InputTokens: in})
			require.GreaterOrEqual(t, first, prevIn, "monotone in input")
			prevIn = first
		}
	}
}

func TestCeil(t *testing.T) {
	assert.Equal(t, int64(0), Ceil(0))
	assert.Equal(t, int64(0), Ceil(-3))
	assert.Equal(t, int64(1), Ceil(0.0001))
	assert.Equal(t, int64(400_000), Ceil(1_000_000*(6.0/15)))
	assert.Equal(t, int64(3), Ceil(math.Nextafter(2, 3)+0.5))
	assert.Equal(t, int64(5), Ceil(5+1e-12))
	assert.Equal(t, int64(5), Ceil(5-1e-12))
	assert.Equal(t, int64(6), Ceil(5+1e-6))
}

func TestCeilTinyValues(t *testing.T) {
	for _, v := range []float64{3e-10, 1e-12, 4.9e-10, math.SmallestNonzeroFloat64} {
		got := Ceil(v)
		assert.Equal(t, int64(1), got, "Ceil(%g)", v)
		assert.GreaterOrEqual(t, float64(got), v)
	}
}

func TestWithOverrides(t *testing.T) {
	table, err := DefaultTable().WithOverrides(map[string]Rate{"opus": {Input: 1, Output: 2}})
	require.NoError(t, err)
	assert.Equal(t, Rate{Input: 1, Output: 2}, table[models.ModelOpus])
	assert.Equal(t, DefaultTable()[models.ModelSonnet], table[models.ModelSonnet])

	_, err = DefaultTable().WithOverrides(map[string]Rate{"opus": {Input: -1}})
	assert.Error(t, err)

	table, err = DefaultTable().WithOverrides(map[string]Rate{"Haiku": {Input: 3, Output: 4}})
	require.NoError(t, err)
	assert.Equal(t, Rate{Input: 3, Output: 4}, table[models.ModelHaiku])
}

func TestWithOverridesRejectsNonFamilies(t *testing.T) {
	for _, name := range []string{"unknown", "gpt-4o", "claude-sonnet-4-5", ""} {
		_, err := DefaultTable().WithOverrides(map[string]Rate{name: {Input: 1, Output: 1}})
		assert.ErrorIs(t, err, ErrUnknownFamily, "override %q", name)
	}
}
