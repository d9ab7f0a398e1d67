// Package memtools provides MCP tool handlers for the memory
// subsystem: notes, decisions, and saved contexts.
//
// Handlers follow the same pattern as internal/plantools: a struct per
// tool with Definition() and Handle(), domain failures rendered as tool
// error results.
package memtools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/memory"
)

// errorResult renders a memory error as a tool error result with a
// stable atom prefix.
func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, memory.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not_found: %v", err))
	case errors.Is(err, memory.ErrValidation):
		return mcp.NewToolResultError(fmt.Sprintf("validation_error: %v", err))
	}
	return mcp.NewToolResultError(err.Error())
}

// intArg extracts an integer argument (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
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

// SaveNoteTool handles the memory_save_note MCP tool.
type SaveNoteTool struct {
	store *memory.Store
}

// NewSaveNoteTool creates a SaveNoteTool with the given memory store.
func NewSaveNoteTool(store *memory.Store) *SaveNoteTool {
	return &SaveNoteTool{store: store}
}

// Definition returns the MCP tool definition for memory_save_note.
func (t *SaveNoteTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_save_note",
		mcp.WithDescription(
			"Save a note to persistent memory: observations, gotchas, "+
				"discoveries worth remembering across sessions. Retrieve with "+
				"memory_search_notes.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project the note belongs to"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short, searchable title"),
		),
		mcp.WithString("content",
			mcp.Description("Note body (truncated past the configured cap)"),
		),
		mcp.WithArray("tags",
			mcp.Description("Optional tags"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// Handle processes the memory_save_note tool call.
func (t *SaveNoteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	title := req.GetString("title", "")
	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}
	if title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}

	note, err := t.store.AddNote(memory.AddNoteParams{
		Project: project,
		Title:   title,
		Content: req.GetString("content", ""),
		Tags:    stringsArg(req, "tags"),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Note saved: %q (ID %d)", note.Title, note.ID)), nil
}

// SearchNotesTool handles the memory_search_notes MCP tool.
type SearchNotesTool struct {
	store *memory.Store
}

// NewSearchNotesTool creates a SearchNotesTool with the given memory store.
func NewSearchNotesTool(store *memory.Store) *SearchNotesTool {
	return &SearchNotesTool{store: store}
}

// Definition returns the MCP tool definition for memory_search_notes.
func (t *SearchNotesTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search_notes",
		mcp.WithDescription(
			"Full-text search over a project's notes. An empty query "+
				"returns the most recent notes instead.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project to search in"),
		),
		mcp.WithString("query",
			mcp.Description("Search terms (empty for recent notes)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default 20)"),
		),
	)
}

// Handle processes the memory_search_notes tool call.
func (t *SearchNotesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := req.GetString("project", "")
	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}

	results, err := t.store.SearchNotes(project, req.GetString("query", ""), intArg(req, "limit", 0))
	if err != nil {
		return errorResult(err), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No notes found."), nil
	}
	return mcp.NewToolResultText(formatNotes(results)), nil
}

func formatNotes(results []memory.NoteSearchResult) string {
	out := fmt.Sprintf("Found %d note(s):\n\n", len(results))
	for _, r := range results {
		out += fmt.Sprintf("## #%d %s (%s)\n%s\n", r.ID, r.Title, r.InsertedAt, r.Content)
		if len(r.Tags) > 0 {
			out += fmt.Sprintf("Tags: %v\n", r.Tags)
		}
		out += "\n"
	}
	return out
}
