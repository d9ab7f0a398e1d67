package plantools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/plan"
)

// DeferStepTool handles the plan_defer_step MCP tool.
type DeferStepTool struct {
	sched *plan.Scheduler
}

// NewDeferStepTool creates a DeferStepTool with the given scheduler.
func NewDeferStepTool(sched *plan.Scheduler) *DeferStepTool {
	return &DeferStepTool{sched: sched}
}

// Definition returns the MCP tool definition for plan_defer_step.
func (t *DeferStepTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_defer_step",
		mcp.WithDescription(
			"Park a pending step so plan_claim_next skips it. The step keeps "+
				"its position and returns to pending via plan_undefer_step.",
		),
		mcp.WithNumber("step_id",
			mcp.Required(),
			mcp.Description("Step ID"),
		),
	)
}

// Handle processes the plan_defer_step tool call.
func (t *DeferStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handleStepSwap(req, t.sched.DeferStep)
}

// UndeferStepTool handles the plan_undefer_step MCP tool.
type UndeferStepTool struct {
	sched *plan.Scheduler
}

// NewUndeferStepTool creates an UndeferStepTool with the given scheduler.
func NewUndeferStepTool(sched *plan.Scheduler) *UndeferStepTool {
	return &UndeferStepTool{sched: sched}
}

// Definition returns the MCP tool definition for plan_undefer_step.
func (t *UndeferStepTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_undefer_step",
		mcp.WithDescription("Return a deferred step to pending at its original position."),
		mcp.WithNumber("step_id",
			mcp.Required(),
			mcp.Description("Step ID"),
		),
	)
}

// Handle processes the plan_undefer_step tool call.
func (t *UndeferStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handleStepSwap(req, t.sched.UndeferStep)
}

// handleStepSwap is the shared plumbing for defer and undefer.
func handleStepSwap(req mcp.CallToolRequest, op func(int64) (*plan.Step, error)) (*mcp.CallToolResult, error) {
	stepID := int64Arg(req, "step_id", 0)
	if stepID == 0 {
		return mcp.NewToolResultError("'step_id' is required"), nil
	}
	step, err := op(stepID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(step), nil
}

// MarkOutdatedTool handles the plan_mark_step_outdated MCP tool.
type MarkOutdatedTool struct {
	sched *plan.Scheduler
}

// NewMarkOutdatedTool creates a MarkOutdatedTool with the given scheduler.
func NewMarkOutdatedTool(sched *plan.Scheduler) *MarkOutdatedTool {
	return &MarkOutdatedTool{sched: sched}
}

// Definition returns the MCP tool definition for plan_mark_step_outdated.
func (t *MarkOutdatedTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_mark_step_outdated",
		mcp.WithDescription(
			"Retire a step that no longer applies after replanning. Works on "+
				"pending and in-progress steps; marking the in-progress step "+
				"releases the plan for the next claim. Outdated is terminal.",
		),
		mcp.WithNumber("step_id",
			mcp.Required(),
			mcp.Description("Step ID"),
		),
		mcp.WithString("result",
			mcp.Description("Why the step is outdated"),
		),
		mcp.WithObject("metadata",
			mcp.Description("Metadata keys to merge in"),
		),
	)
}

// Handle processes the plan_mark_step_outdated tool call.
func (t *MarkOutdatedTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handleRelease(req, t.sched.MarkStepOutdated)
}

// PauseTool handles the plan_pause MCP tool.
type PauseTool struct {
	sched *plan.Scheduler
}

// NewPauseTool creates a PauseTool with the given scheduler.
func NewPauseTool(sched *plan.Scheduler) *PauseTool {
	return &PauseTool{sched: sched}
}

// Definition returns the MCP tool definition for plan_pause.
func (t *PauseTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_pause",
		mcp.WithDescription(
			"Pause an idle or running plan. New claims are refused; an "+
				"already-claimed step can still be completed or failed.",
		),
		mcp.WithString("plan_id",
			mcp.Required(),
			mcp.Description("Plan ID"),
		),
	)
}

// Handle processes the plan_pause tool call.
func (t *PauseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handlePlanSwap(req, t.sched.PausePlan)
}

// ResumeTool handles the plan_resume MCP tool.
type ResumeTool struct {
	sched *plan.Scheduler
}

// NewResumeTool creates a ResumeTool with the given scheduler.
func NewResumeTool(sched *plan.Scheduler) *ResumeTool {
	return &ResumeTool{sched: sched}
}

// Definition returns the MCP tool definition for plan_resume.
func (t *ResumeTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_resume",
		mcp.WithDescription("Resume a paused plan so plan_claim_next works again."),
		mcp.WithString("plan_id",
			mcp.Required(),
			mcp.Description("Plan ID"),
		),
	)
}

// Handle processes the plan_resume tool call.
func (t *ResumeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handlePlanSwap(req, t.sched.ResumePlan)
}

// handlePlanSwap is the shared plumbing for pause and resume.
func handlePlanSwap(req mcp.CallToolRequest, op func(string) (*plan.Plan, error)) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("'plan_id' is required"), nil
	}
	p, err := op(planID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(p), nil
}
