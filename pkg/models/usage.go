package models

import (
	"strings"
	"time"
)

// ModelID is the model family a usage event is billed as.
type ModelID string

const (
	ModelOpus    ModelID = "opus"
	ModelSonnet  ModelID = "sonnet"
	ModelHaiku   ModelID = "haiku"
	ModelUnknown ModelID = "unknown"
)

// Families lists the model families that carry their own rate.
var Families = []ModelID{ModelOpus, ModelSonnet, ModelHaiku}

// IsFamily reports whether m is one of Families.
func (m ModelID) IsFamily() bool {
	for _, f := range Families {
		if m == f {
			return true
		}
	}
	return false
}

// ResolveModel maps a raw model identifier such as "claude-sonnet-4-5-20250929"
// to its family. Identifiers that match no family resolve to ModelUnknown.
func ResolveModel(raw string) ModelID {
	id := strings.ToLower(raw)
	switch {
	case strings.Contains(id, "haiku"):
		return ModelHaiku
	case strings.Contains(id, "sonnet"):
		return ModelSonnet
	case strings.Contains(id, "opus"):
		return ModelOpus
	default:
		return ModelUnknown
	}
}

// UsageEvent is one completed assistant response with token counts.
type UsageEvent struct {
	Timestamp           time.Time `json:"timestamp"`
	Model               ModelID   `json:"model"`
	RawModel            string    `json:"raw_model,omitempty"`
	InputTokens         int64     `json:"input_tokens"`
	OutputTokens        int64     `json:"output_tokens"`
	CacheReadTokens     int64     `json:"cache_read_tokens"`
	CacheCreationTokens int64     `json:"cache_creation_tokens"`
}

// WindowUsage is the credit usage of a single rolling window.
type WindowUsage struct {
	Used     int64      `json:"used"`
	Limit    int64      `json:"limit"`
	Pct      float64    `json:"pct"`
	ResetsAt *time.Time `json:"resets_at,omitempty"`
}

// Details summarizes token activity inside the 5-hour window.
type Details struct {
	Messages        int64 `json:"messages"`
	InputTokens     int64 `json:"input_tokens"`
	OutputTokens    int64 `json:"output_tokens"`
	CacheReadTokens int64 `json:"cache_read_tokens"`
}

// Diagnostics records everything that was recovered from rather than failed on.
type Diagnostics struct {
	FilesRead   int      `json:"files_read"`
	FileErrors  int      `json:"file_errors,omitempty"`
	Lines       int      `json:"lines"`
	Malformed   int      `json:"malformed,omitempty"`
	Skipped     int      `json:"skipped,omitempty"`
	Duplicates  int      `json:"duplicates,omitempty"`
	Estimated   int      `json:"estimated,omitempty"`
	UnknownPlan bool     `json:"unknown_plan,omitempty"`
	ZeroLimit   bool     `json:"zero_limit,omitempty"`
	StalePushed []string `json:"stale_pushed,omitempty"`
	Fallback    string   `json:"fallback,omitempty"`
}
