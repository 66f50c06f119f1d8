package reconcile

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/headroom/pkg/models"
)

func TestParsePayloadFlat(t *testing.T) {
	p, err := ParsePayload([]byte(`{"five_hour_pct": 42.5, "seven_day_pct": 10, "resets_at": "2026-06-01T15:00:00Z"}`), now)
	require.NoError(t, err)
	assert.Equal(t, 42.5, p.FiveHourPct)
	assert.Equal(t, 10.0, p.SevenDayPct)
	require.NotNil(t, p.FiveHourResetsAt)
	assert.Equal(t, time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC), *p.FiveHourResetsAt)
	assert.Nil(t, p.SevenDayResetsAt)
	assert.Equal(t, now, p.UpdatedAt)
	assert.Equal(t, models.ProvenancePushedJSON, p.Provenance)
}

func TestParsePayloadNested(t *testing.T) {
	doc := `{
		"five_hour": {"utilization": 12, "resets_at": "2026-06-01T14:00:00.000+00:00"},
		"seven_day": {"utilization": 81.5, "resets_at": null},
		"updated_at": "2026-06-01T11:59:00Z",
		"extra": {"ignored": true}
	}`
	p, err := ParsePayload([]byte(doc), now)
	require.NoError(t, err)
	assert.Equal(t, 12.0, p.FiveHourPct)
	assert.Equal(t, 81.5, p.SevenDayPct)
	require.NotNil(t, p.FiveHourResetsAt)
	assert.Nil(t, p.SevenDayResetsAt)
	assert.Equal(t, time.Date(2026, 6, 1, 11, 59, 0, 0, time.UTC), p.UpdatedAt)
}

func TestParsePayloadRejects(t *testing.T) {
	tests := map[string]struct {
		doc  string
		want error
	}{
		"missing seven day":  {doc: `{"five_hour_pct": 1}`, want: ErrMissingPct},
		"missing nested pct": {doc: `{"five_hour": {"resets_at": "2026-06-01T14:00:00Z"}, "seven_day": {"utilization": 1}}`, want: ErrMissingPct},
		"negative":           {doc: `{"five_hour_pct": -1, "seven_day_pct": 1}`, want: ErrPctRange},
		"over 100":           {doc: `{"five_hour_pct": 1, "seven_day_pct": 100.5}`, want: ErrPctRange},
		"mixed shapes":       {doc: `{"five_hour_pct": 1, "seven_day": {"utilization": 1}}`, want: ErrConflictingShape},
		"string pct":         {doc: `{"five_hour_pct": "1", "seven_day_pct": 1}`},
		"bad timestamp":      {doc: `{"five_hour_pct": 1, "seven_day_pct": 1, "resets_at": "tomorrow"}`},
		"not json":           {doc: `five_hour=1`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePayload([]byte(tt.doc), now)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestManualPush(t *testing.T) {
	p, err := ManualPush(96, 10, nil, now)
	require.NoError(t, err)
	assert.Equal(t, models.ProvenancePushedManual, p.Provenance)
	assert.Nil(t, p.FiveHourResetsAt)

	_, err = ManualPush(math.NaN(), 10, nil, now)
	assert.ErrorIs(t, err, ErrPctRange)
}

func TestParseInstant(t *testing.T) {
	ts, err := ParseInstant("2026-06-01T14:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), ts)

	_, err = ParseInstant("2026-06-01")
	assert.Error(t, err)
}
