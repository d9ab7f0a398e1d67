package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/memory"
)

// RecordDecisionTool handles the memory_record_decision MCP tool.
type RecordDecisionTool struct {
	store *memory.Store
}

// NewRecordDecisionTool creates a RecordDecisionTool with the given store.
func NewRecordDecisionTool(store *memory.Store) *RecordDecisionTool {
	return &RecordDecisionTool{store: store}
}

// Definition returns the MCP tool definition for memory_record_decision.
func (t *RecordDecisionTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_record_decision",
		mcp.WithDescription(
			"Record a decision with its rationale so future sessions know "+
				"what was chosen and why. Review with memory_list_decisions.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project the decision belongs to"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short title (e.g. 'storage engine')"),
		),
		mcp.WithString("decision",
			mcp.Required(),
			mcp.Description("What was decided"),
		),
		mcp.WithString("rationale",
			mcp.Description("Why this was chosen over the alternatives"),
		),
	)
}

// Handle processes the memory_record_decision tool call.
func (t *RecordDecisionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	title := req.GetString("title", "")
	decision := req.GetString("decision", "")
	if project == "" || title == "" || decision == "" {
		return mcp.NewToolResultError("'project', 'title', and 'decision' are required"), nil
	}

	d, err := t.store.AddDecision(memory.AddDecisionParams{
		Project:   project,
		Title:     title,
		Decision:  decision,
		Rationale: req.GetString("rationale", ""),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Decision recorded: %q (ID %d)", d.Title, d.ID)), nil
}

// ListDecisionsTool handles the memory_list_decisions MCP tool.
type ListDecisionsTool struct {
	store *memory.Store
}

// NewListDecisionsTool creates a ListDecisionsTool with the given store.
func NewListDecisionsTool(store *memory.Store) *ListDecisionsTool {
	return &ListDecisionsTool{store: store}
}

// Definition returns the MCP tool definition for memory_list_decisions.
func (t *ListDecisionsTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_list_decisions",
		mcp.WithDescription("List a project's recorded decisions, newest first."),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project to list decisions for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max decisions to return (default 20)"),
		),
	)
}

// Handle processes the memory_list_decisions tool call.
func (t *ListDecisionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}

	decisions, err := t.store.ListDecisions(project, intArg(req, "limit", 0))
	if err != nil {
		return errorResult(err), nil
	}
	if len(decisions) == 0 {
		return mcp.NewToolResultText("No decisions recorded."), nil
	}

	out := fmt.Sprintf("Found %d decision(s):\n\n", len(decisions))
	for _, d := range decisions {
		out += fmt.Sprintf("## #%d %s (%s)\n%s\n", d.ID, d.Title, d.InsertedAt, d.Decision)
		if d.Rationale != "" {
			out += fmt.Sprintf("Rationale: %s\n", d.Rationale)
		}
		out += "\n"
	}
	return mcp.NewToolResultText(out), nil
}
