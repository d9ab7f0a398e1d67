package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/memory"
)

// SaveContextTool handles the memory_save_context MCP tool.
type SaveContextTool struct {
	store *memory.Store
}

// NewSaveContextTool creates a SaveContextTool with the given store.
func NewSaveContextTool(store *memory.Store) *SaveContextTool {
	return &SaveContextTool{store: store}
}

// Definition returns the MCP tool definition for memory_save_context.
func (t *SaveContextTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_save_context",
		mcp.WithDescription(
			"Save a named context document (session handoff, working state, "+
				"summary). Saving to an existing slug replaces its content.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project the context belongs to"),
		),
		mcp.WithString("slug",
			mcp.Required(),
			mcp.Description("Stable identifier (e.g. 'session-handoff')"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Document body"),
		),
	)
}

// Handle processes the memory_save_context tool call.
func (t *SaveContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	slug := req.GetString("slug", "")
	content := req.GetString("content", "")
	if project == "" || slug == "" {
		return mcp.NewToolResultError("'project' and 'slug' are required"), nil
	}
	if content == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	c, err := t.store.SaveContext(project, slug, content)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Context %q saved (updated %s).", c.Slug, c.UpdatedAt)), nil
}

// GetContextTool handles the memory_get_context MCP tool.
type GetContextTool struct {
	store *memory.Store
}

// NewGetContextTool creates a GetContextTool with the given store.
func NewGetContextTool(store *memory.Store) *GetContextTool {
	return &GetContextTool{store: store}
}

// Definition returns the MCP tool definition for memory_get_context.
func (t *GetContextTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_get_context",
		mcp.WithDescription("Fetch a saved context document by slug."),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project the context belongs to"),
		),
		mcp.WithString("slug",
			mcp.Required(),
			mcp.Description("Context identifier"),
		),
	)
}

// Handle processes the memory_get_context tool call.
func (t *GetContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	slug := req.GetString("slug", "")
	if project == "" || slug == "" {
		return mcp.NewToolResultError("'project' and 'slug' are required"), nil
	}

	c, err := t.store.GetContext(project, slug)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("# %s (updated %s)\n\n%s", c.Slug, c.UpdatedAt, c.Content)), nil
}

// ListContextsTool handles the memory_list_contexts MCP tool.
type ListContextsTool struct {
	store *memory.Store
}

// NewListContextsTool creates a ListContextsTool with the given store.
func NewListContextsTool(store *memory.Store) *ListContextsTool {
	return &ListContextsTool{store: store}
}

// Definition returns the MCP tool definition for memory_list_contexts.
func (t *ListContextsTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_list_contexts",
		mcp.WithDescription("List a project's saved context slugs, most recently updated first."),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project to list contexts for"),
		),
	)
}

// Handle processes the memory_list_contexts tool call.
func (t *ListContextsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}

	contexts, err := t.store.ListContexts(project)
	if err != nil {
		return errorResult(err), nil
	}
	if len(contexts) == 0 {
		return mcp.NewToolResultText("No saved contexts."), nil
	}

	out := fmt.Sprintf("Found %d context(s):\n\n", len(contexts))
	for _, c := range contexts {
		out += fmt.Sprintf("- %s (updated %s)\n", c.Slug, c.UpdatedAt)
	}
	return mcp.NewToolResultText(out), nil
}
