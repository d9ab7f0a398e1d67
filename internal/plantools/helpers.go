// Package plantools provides MCP tool handlers for the plan execution
// engine.
//
// Each tool handler follows the same pattern:
// - A struct holding its dependency (plan.Scheduler or plan.Store)
// - Definition() returns the mcp.Tool schema
// - Handle() validates arguments, calls the engine, renders the result
//
// Domain failures come back as tool error results carrying a stable
// error atom prefix (e.g. "plan_not_found: ..."), so agents can branch
// on the atom without parsing prose. Only transport-level failures
// propagate as Go errors.
package plantools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/plan"
)

// errorAtoms maps engine sentinels to the stable atom names exposed to
// agents.
var errorAtoms = []struct {
	err  error
	atom string
}{
	{plan.ErrPlanNotFound, "plan_not_found"},
	{plan.ErrStepNotFound, "step_not_found"},
	{plan.ErrInvalidTransition, "invalid_transition"},
	{plan.ErrStepNotInProgress, "step_not_in_progress"},
	{plan.ErrCannotMarkOutdated, "cannot_mark_outdated"},
	{plan.ErrCannotPause, "cannot_pause"},
	{plan.ErrNotPaused, "not_paused"},
	{plan.ErrCanOnlyDeferPending, "can_only_defer_pending"},
	{plan.ErrNotDeferred, "not_deferred"},
	{plan.ErrDuplicateStepNumber, "duplicate_step_number"},
	{plan.ErrValidation, "validation_error"},
}

// errorResult renders an engine error as a tool error result, prefixed
// with its atom when the error matches a known sentinel.
func errorResult(err error) *mcp.CallToolResult {
	for _, e := range errorAtoms {
		if errors.Is(err, e.err) {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", e.atom, err))
		}
	}
	return mcp.NewToolResultError(err.Error())
}

// jsonResult renders any value as an indented JSON text result.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// intArg extracts an integer argument, returning defaultVal if the key
// is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// int64Arg extracts an int64 argument the same way.
func int64Arg(req mcp.CallToolRequest, key string, defaultVal int64) int64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int64(v)
}

// floatArg extracts an optional float argument; nil when absent.
func floatArg(req mcp.CallToolRequest, key string) *float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return nil
	}
	return &v
}

// stringsArg extracts an optional list-of-strings argument.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// objectArg extracts an optional JSON-object argument; nil when absent.
func objectArg(req mcp.CallToolRequest, key string) map[string]any {
	v, ok := req.GetArguments()[key].(map[string]any)
	if !ok {
		return nil
	}
	return v
}
