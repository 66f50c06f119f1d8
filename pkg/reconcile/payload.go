package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pario-ai/headroom/pkg/models"
)

var (
	// ErrMissingPct is returned when a push lacks a window percentage.
	ErrMissingPct = errors.New("missing utilization percentage")
	// ErrPctRange is returned for percentages outside [0, 100].
	ErrPctRange = errors.New("utilization percentage out of range")
	// ErrConflictingShape is returned when a payload mixes flat and nested fields.
	ErrConflictingShape = errors.New("payload mixes flat and nested window fields")
)

// payload is the accepted shape of an update-json document. Either the flat
// *_pct fields or the nested window objects must be present.
type payload struct {
	FiveHourPct      *float64       `json:"five_hour_pct"`
	SevenDayPct      *float64       `json:"seven_day_pct"`
	FiveHourResetsAt *string        `json:"five_hour_resets_at"`
	SevenDayResetsAt *string        `json:"seven_day_resets_at"`
	ResetsAt         *string        `json:"resets_at"`
	FiveHour         *payloadWindow `json:"five_hour"`
	SevenDay         *payloadWindow `json:"seven_day"`
	UpdatedAt        *string        `json:"updated_at"`
}

type payloadWindow struct {
	Utilization *float64 `json:"utilization"`
	ResetsAt    *string  `json:"resets_at"`
}

// ParsePayload validates a loosely shaped JSON usage report. now stamps the
// result when the payload carries no updated_at.
func ParsePayload(data []byte, now time.Time) (models.PushedUsage, error) {
	var p payload
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&p); err != nil {
		return models.PushedUsage{}, fmt.Errorf("decode payload: %w", err)
	}

	flat := p.FiveHourPct != nil || p.SevenDayPct != nil
	nested := p.FiveHour != nil || p.SevenDay != nil
	if flat && nested {
		return models.PushedUsage{}, ErrConflictingShape
	}

	var (
		fivePct, sevenPct     *float64
		fiveReset, sevenReset *string
	)
	if nested {
		if p.FiveHour != nil {
			fivePct, fiveReset = p.FiveHour.Utilization, p.FiveHour.ResetsAt
		}
		if p.SevenDay != nil {
			sevenPct, sevenReset = p.SevenDay.Utilization, p.SevenDay.ResetsAt
		}
	} else {
		fivePct, sevenPct = p.FiveHourPct, p.SevenDayPct
		fiveReset, sevenReset = p.FiveHourResetsAt, p.SevenDayResetsAt
		if fiveReset == nil {
			fiveReset = p.ResetsAt
		}
	}

	if fivePct == nil {
		return models.PushedUsage{}, fmt.Errorf("five_hour: %w", ErrMissingPct)
	}
	if sevenPct == nil {
		return models.PushedUsage{}, fmt.Errorf("seven_day: %w", ErrMissingPct)
	}

	out := models.PushedUsage{
		FiveHourPct: *fivePct,
		SevenDayPct: *sevenPct,
		UpdatedAt:   now.UTC(),
		Provenance:  models.ProvenancePushedJSON,
	}
	var err error
	if out.FiveHourResetsAt, err = parseInstant("five_hour resets_at", fiveReset); err != nil {
		return models.PushedUsage{}, err
	}
	if out.SevenDayResetsAt, err = parseInstant("seven_day resets_at", sevenReset); err != nil {
		return models.PushedUsage{}, err
	}
	if p.UpdatedAt != nil {
		ts, err := parseInstant("updated_at", p.UpdatedAt)
		if err != nil {
			return models.PushedUsage{}, err
		}
		out.UpdatedAt = *ts
	}
	if err := validate(out); err != nil {
		return models.PushedUsage{}, err
	}
	return out, nil
}

// ManualPush builds a validated push from explicit percentages. resetsAt, if
// set, applies to the five-hour window.
func ManualPush(fiveHourPct, sevenDayPct float64, resetsAt *time.Time, now time.Time) (models.PushedUsage, error) {
	out := models.PushedUsage{
		FiveHourPct:      fiveHourPct,
		SevenDayPct:      sevenDayPct,
		FiveHourResetsAt: resetsAt,
		UpdatedAt:        now.UTC(),
		Provenance:       models.ProvenancePushedManual,
	}
	if err := validate(out); err != nil {
		return models.PushedUsage{}, err
	}
	return out, nil
}

// ParseInstant parses an ISO 8601 / RFC 3339 timestamp.
func ParseInstant(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}

func parseInstant(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	ts, err := ParseInstant(*s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &ts, nil
}

func validate(p models.PushedUsage) error {
	if err := checkPct("five_hour", p.FiveHourPct); err != nil {
		return err
	}
	return checkPct("seven_day", p.SevenDayPct)
}

func checkPct(window string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return fmt.Errorf("%s %v: %w", window, v, ErrPctRange)
	}
	return nil
}
