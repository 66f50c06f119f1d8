package credits

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pario-ai/headroom/pkg/models"
)

// Rate converts tokens to credits for one model family.
type Rate struct {
	Input  float64 `json:"input" yaml:"input"`
	Output float64 `json:"output" yaml:"output"`
}

// Validate rejects negative rates.
func (r Rate) Validate() error {
	if r.Input < 0 || r.Output < 0 {
		return fmt.Errorf("negative rate (input=%g, output=%g)", r.Input, r.Output)
	}
	return nil
}

// Table maps model families to their conversion rates.
type Table map[models.ModelID]Rate

// DefaultTable returns the subscription credit rates per token.
func DefaultTable() Table {
	return Table{
		models.ModelOpus:   {Input: 10.0 / 15, Output: 50.0 / 15},
		models.ModelSonnet: {Input: 6.0 / 15, Output: 30.0 / 15},
		models.ModelHaiku:  {Input: 2.0 / 15, Output: 10.0 / 15},
	}
}

// ErrUnknownFamily is returned for a rate override that names no model family.
// Unrecognized models are priced by the fallback rate instead.
var ErrUnknownFamily = errors.New("not a model family (want opus, sonnet or haiku; use credits.fallback_rate for other models)")

// WithOverrides returns a copy of t with the given entries replaced. Keys are
// model family names, matched case-insensitively.
func (t Table) WithOverrides(overrides map[string]Rate) (Table, error) {
	out := make(Table, len(t)+len(overrides))
	for k, v := range t {
		out[k] = v
	}
	for name, r := range overrides {
		id := models.ModelID(strings.ToLower(strings.TrimSpace(name)))
		if !id.IsFamily() {
			return nil, fmt.Errorf("rate %s: %w", name, ErrUnknownFamily)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rate %s: %w", name, err)
		}
		out[id] = r
	}
	return out, nil
}

// Lookup returns the rate for id and whether the table has it.
func (t Table) Lookup(id models.ModelID) (Rate, bool) {
	r, ok := t[id]
	return r, ok
}
