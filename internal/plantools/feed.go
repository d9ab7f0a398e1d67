package plantools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/activity"
)

// ActivityFeedTool handles the activity_feed MCP tool.
type ActivityFeedTool struct {
	svc *activity.Service
}

// NewActivityFeedTool creates an ActivityFeedTool with the given service.
func NewActivityFeedTool(svc *activity.Service) *ActivityFeedTool {
	return &ActivityFeedTool{svc: svc}
}

// Definition returns the MCP tool definition for activity_feed.
func (t *ActivityFeedTool) Definition() mcp.Tool {
	return mcp.NewTool("activity_feed",
		mcp.WithDescription(
			"Recent activity across plans, steps, notes, and decisions, "+
				"newest first. Use this to catch up on what happened in a "+
				"project since the last session.",
		),
		mcp.WithString("project",
			mcp.Description("Limit to one project (default: all)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max events to return (default 30, max 100)"),
		),
	)
}

// Handle processes the activity_feed tool call.
func (t *ActivityFeedTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := t.svc.Feed(req.GetString("project", ""), intArg(req, "limit", 0))
	if err != nil {
		return errorResult(err), nil
	}
	if len(events) == 0 {
		return mcp.NewToolResultText("No activity yet."), nil
	}
	return jsonResult(events), nil
}
