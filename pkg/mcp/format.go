package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/headroom/pkg/capacity"
	"github.com/pario-ai/headroom/pkg/models"
)

// formatDecision renders the should-explore answer with its basis.
func formatDecision(d models.Decision, s models.CapacitySnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", d)
	fmt.Fprintf(&b, "tier: %s (p_explore %.2f)\n", s.Tier, s.PExplore)
	fmt.Fprintf(&b, "5h: %.1f%%  7d: %.1f%%  source: %s\n", s.FiveHour.Pct, s.SevenDay.Pct, s.Provenance)
	if s.NoData {
		b.WriteString("no usage data available\n")
	}
	b.WriteString(capacity.Advice(s.Tier))
	return b.String()
}
