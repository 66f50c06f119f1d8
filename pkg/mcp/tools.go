package mcp

import (
	"context"
	"encoding/json"

	"github.com/pario-ai/headroom/pkg/advisor"
)

// defaultHistoryLimit bounds headroom_history when no limit is given.
const defaultHistoryLimit = 20

type historyArgs struct {
	Limit int `json:"limit"`
}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"headroom_status":         handleStatus,
	"headroom_should_explore": handleShouldExplore,
	"headroom_raw":            handleRaw,
	"headroom_history":        handleHistory,
}

var (
	noArgs   = InputSchema{Type: "object", Properties: map[string]Property{}}
	minLimit = 1
)

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "headroom_status",
		Description: "Show current 5-hour and 7-day usage, capacity tier and advice.",
		InputSchema: noArgs,
	},
	{
		Name:        "headroom_should_explore",
		Description: "Answer yes, maybe or no: is there capacity for optional exploration right now?",
		InputSchema: noArgs,
	},
	{
		Name:        "headroom_raw",
		Description: "Return the full capacity snapshot as JSON.",
		InputSchema: noArgs,
	},
	{
		Name:        "headroom_history",
		Description: "List recorded capacity snapshots, newest first.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"limit": {Type: "integer", Description: "Maximum number of entries (default 20)", Minimum: &minLimit},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleStatus(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	snap, err := s.advisor.Status(ctx)
	if err != nil {
		return errorResult("Error computing status: " + err.Error())
	}
	return textResult(advisor.FormatStatus(snap))
}

func handleShouldExplore(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	d, snap, err := s.advisor.ShouldExplore(ctx)
	if err != nil {
		return errorResult("Error computing decision: " + err.Error())
	}
	return textResult(formatDecision(d, snap))
}

func handleRaw(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	data, err := s.advisor.Raw(ctx)
	if err != nil {
		return errorResult("Error computing snapshot: " + err.Error())
	}
	return textResult(string(data))
}

func handleHistory(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args historyArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Limit <= 0 {
		args.Limit = defaultHistoryLimit
	}
	entries, err := s.advisor.History(ctx, args.Limit)
	if err != nil {
		return errorResult("Error fetching history: " + err.Error())
	}
	return textResult(advisor.FormatHistory(entries))
}
