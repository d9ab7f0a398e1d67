package plantools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/plan"
)

// CreateTool handles the plan_create MCP tool.
type CreateTool struct {
	store *plan.Store
}

// NewCreateTool creates a CreateTool with the given plan store.
func NewCreateTool(store *plan.Store) *CreateTool {
	return &CreateTool{store: store}
}

// Definition returns the MCP tool definition for plan_create.
func (t *CreateTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_create",
		mcp.WithDescription(
			"Create a new plan: an ordered, resumable list of steps that agents "+
				"work through one step at a time. Add steps with plan_add_step, then "+
				"drive execution with plan_claim_next.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project the plan belongs to"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short plan title (e.g. 'Migrate auth to OAuth')"),
		),
		mcp.WithString("body",
			mcp.Description("Longer free-form description of the plan"),
		),
		mcp.WithArray("tags",
			mcp.Description("Optional tags"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("files",
			mcp.Description("Files this plan touches"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// Handle processes the plan_create tool call.
func (t *CreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	title := req.GetString("title", "")
	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}
	if title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}

	p, err := t.store.CreatePlan(plan.CreatePlanParams{
		Project: project,
		Title:   title,
		Body:    req.GetString("body", ""),
		Tags:    stringsArg(req, "tags"),
		Files:   stringsArg(req, "files"),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(p), nil
}

// GetTool handles the plan_get MCP tool.
type GetTool struct {
	store *plan.Store
}

// NewGetTool creates a GetTool with the given plan store.
func NewGetTool(store *plan.Store) *GetTool {
	return &GetTool{store: store}
}

// Definition returns the MCP tool definition for plan_get.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_get",
		mcp.WithDescription(
			"Fetch one plan by ID, or by exact title within a project "+
				"(newest match wins when titles repeat).",
		),
		mcp.WithString("plan_id",
			mcp.Description("Plan ID (preferred lookup)"),
		),
		mcp.WithString("project",
			mcp.Description("Project, for title lookup"),
		),
		mcp.WithString("title",
			mcp.Description("Exact title, for title lookup"),
		),
	)
}

// Handle processes the plan_get tool call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("plan_id", ""); id != "" {
		p, err := t.store.GetPlan(id)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(p), nil
	}

	project := req.GetString("project", "")
	title := req.GetString("title", "")
	if project == "" || title == "" {
		return mcp.NewToolResultError("provide 'plan_id', or 'project' and 'title'"), nil
	}
	p, err := t.store.GetPlanByTitle(project, title)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(p), nil
}

// ListTool handles the plan_list MCP tool.
type ListTool struct {
	store *plan.Store
}

// NewListTool creates a ListTool with the given plan store.
func NewListTool(store *plan.Store) *ListTool {
	return &ListTool{store: store}
}

// Definition returns the MCP tool definition for plan_list.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_list",
		mcp.WithDescription("List plans, newest first, optionally filtered by project and exact title."),
		mcp.WithString("project",
			mcp.Description("Filter to one project"),
		),
		mcp.WithString("title",
			mcp.Description("Filter to an exact title"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max plans to return (default 20)"),
		),
	)
}

// Handle processes the plan_list tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plans, err := t.store.ListPlans(plan.ListPlansParams{
		Project: req.GetString("project", ""),
		Title:   req.GetString("title", ""),
		Limit:   intArg(req, "limit", 0),
	})
	if err != nil {
		return errorResult(err), nil
	}
	if len(plans) == 0 {
		return mcp.NewToolResultText("No plans found."), nil
	}
	return jsonResult(plans), nil
}

// TitlesTool handles the plan_titles MCP tool.
type TitlesTool struct {
	store *plan.Store
}

// NewTitlesTool creates a TitlesTool with the given plan store.
func NewTitlesTool(store *plan.Store) *TitlesTool {
	return &TitlesTool{store: store}
}

// Definition returns the MCP tool definition for plan_titles.
func (t *TitlesTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_titles",
		mcp.WithDescription("List the distinct plan titles in a project, sorted."),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project to list titles for"),
		),
	)
}

// Handle processes the plan_titles tool call.
func (t *TitlesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}
	titles, err := t.store.ListTitles(project)
	if err != nil {
		return errorResult(err), nil
	}
	if len(titles) == 0 {
		return mcp.NewToolResultText("No plans found."), nil
	}
	return jsonResult(titles), nil
}

// UpdateBodyTool handles the plan_update_body MCP tool.
type UpdateBodyTool struct {
	store *plan.Store
}

// NewUpdateBodyTool creates an UpdateBodyTool with the given plan store.
func NewUpdateBodyTool(store *plan.Store) *UpdateBodyTool {
	return &UpdateBodyTool{store: store}
}

// Definition returns the MCP tool definition for plan_update_body.
func (t *UpdateBodyTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_update_body",
		mcp.WithDescription("Replace a plan's body text. Steps and status are untouched."),
		mcp.WithString("plan_id",
			mcp.Required(),
			mcp.Description("Plan ID"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("New body text"),
		),
	)
}

// Handle processes the plan_update_body tool call.
func (t *UpdateBodyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("plan_id", "")
	if id == "" {
		return mcp.NewToolResultError("'plan_id' is required"), nil
	}
	p, err := t.store.UpdatePlanBody(id, req.GetString("body", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(p), nil
}

// DeleteTool handles the plan_delete MCP tool.
type DeleteTool struct {
	store *plan.Store
}

// NewDeleteTool creates a DeleteTool with the given plan store.
func NewDeleteTool(store *plan.Store) *DeleteTool {
	return &DeleteTool{store: store}
}

// Definition returns the MCP tool definition for plan_delete.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_delete",
		mcp.WithDescription("Delete a plan and all of its steps. This cannot be undone."),
		mcp.WithString("plan_id",
			mcp.Required(),
			mcp.Description("Plan ID"),
		),
	)
}

// Handle processes the plan_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("plan_id", "")
	if id == "" {
		return mcp.NewToolResultError("'plan_id' is required"), nil
	}
	if err := t.store.DeletePlan(id); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Plan %s deleted.", id)), nil
}
