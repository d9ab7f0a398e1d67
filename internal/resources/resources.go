// Package resources implements MCP resource handlers for Stride.
//
// Resources provide read-only data that the host can consume for
// context. They use URI-based addressing (stride://...) following MCP
// conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/activity"
)

// Handler manages Stride resource endpoints.
type Handler struct {
	svc *activity.Service
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(svc *activity.Service) *Handler {
	return &Handler{svc: svc}
}

// ActivityResource returns the MCP resource definition for the
// activity feed.
func (h *Handler) ActivityResource() mcp.Resource {
	return mcp.NewResource(
		"stride://activity",
		"Recent Activity",
		mcp.WithResourceDescription("Recent plans, steps, notes, and decisions across all projects"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleActivity returns the recent activity feed as JSON.
func (h *Handler) HandleActivity(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	events, err := h.svc.Feed("", 0)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, events)
}

// ProgressResource returns the MCP resource definition for plan
// progress.
func (h *Handler) ProgressResource() mcp.Resource {
	return mcp.NewResource(
		"stride://plans/progress",
		"Plan Progress",
		mcp.WithResourceDescription("Per-plan step counts by status and completion ratios"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleProgress returns per-plan progress as JSON.
func (h *Handler) HandleProgress(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	progress, err := h.svc.Progress("")
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, progress)
}

// jsonResource wraps a value as a single JSON resource content.
func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource carrying an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
