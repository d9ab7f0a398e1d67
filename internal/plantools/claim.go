package plantools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/plan"
)

// ClaimNextTool handles the plan_claim_next MCP tool.
type ClaimNextTool struct {
	sched *plan.Scheduler
}

// NewClaimNextTool creates a ClaimNextTool with the given scheduler.
func NewClaimNextTool(sched *plan.Scheduler) *ClaimNextTool {
	return &ClaimNextTool{sched: sched}
}

// Definition returns the MCP tool definition for plan_claim_next.
func (t *ClaimNextTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_claim_next",
		mcp.WithDescription(
			"Atomically claim the next pending step of a plan (lowest step "+
				"number). At most one step per plan is ever in progress, even "+
				"with concurrent callers. Outcomes: 'claimed' with the step, "+
				"'plan_locked' if another step is in progress, 'plan_completed' "+
				"when no claimable work remains, 'plan_not_active' for paused "+
				"or failed plans. Finish the claimed step with plan_complete_step "+
				"or plan_fail_step.",
		),
		mcp.WithString("plan_id",
			mcp.Required(),
			mcp.Description("Plan ID"),
		),
	)
}

// Handle processes the plan_claim_next tool call.
func (t *ClaimNextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("'plan_id' is required"), nil
	}

	res, err := t.sched.ClaimNext(planID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(res), nil
}

// CompleteStepTool handles the plan_complete_step MCP tool.
type CompleteStepTool struct {
	sched *plan.Scheduler
}

// NewCompleteStepTool creates a CompleteStepTool with the given scheduler.
func NewCompleteStepTool(sched *plan.Scheduler) *CompleteStepTool {
	return &CompleteStepTool{sched: sched}
}

// Definition returns the MCP tool definition for plan_complete_step.
func (t *CompleteStepTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_complete_step",
		mcp.WithDescription(
			"Mark a claimed (in-progress) step completed and release the plan "+
				"for the next claim. Optionally record a result and merge metadata.",
		),
		mcp.WithNumber("step_id",
			mcp.Required(),
			mcp.Description("Step ID returned by plan_claim_next"),
		),
		mcp.WithString("result",
			mcp.Description("What the step produced"),
		),
		mcp.WithObject("metadata",
			mcp.Description("Metadata keys to merge in"),
		),
	)
}

// Handle processes the plan_complete_step tool call.
func (t *CompleteStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handleRelease(req, t.sched.CompleteStep)
}

// FailStepTool handles the plan_fail_step MCP tool.
type FailStepTool struct {
	sched *plan.Scheduler
}

// NewFailStepTool creates a FailStepTool with the given scheduler.
func NewFailStepTool(sched *plan.Scheduler) *FailStepTool {
	return &FailStepTool{sched: sched}
}

// Definition returns the MCP tool definition for plan_fail_step.
func (t *FailStepTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_fail_step",
		mcp.WithDescription(
			"Mark a claimed (in-progress) step failed. The plan moves to "+
				"'failed' and accepts no further claims until replanned. "+
				"Record what went wrong in 'result'.",
		),
		mcp.WithNumber("step_id",
			mcp.Required(),
			mcp.Description("Step ID returned by plan_claim_next"),
		),
		mcp.WithString("result",
			mcp.Description("Failure details"),
		),
		mcp.WithObject("metadata",
			mcp.Description("Metadata keys to merge in"),
		),
	)
}

// Handle processes the plan_fail_step tool call.
func (t *FailStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return handleRelease(req, t.sched.FailStep)
}

// handleRelease is the shared argument plumbing for complete and fail.
func handleRelease(req mcp.CallToolRequest, op func(int64, plan.ReleaseParams) (*plan.Step, error)) (*mcp.CallToolResult, error) {
	stepID := int64Arg(req, "step_id", 0)
	if stepID == 0 {
		return mcp.NewToolResultError("'step_id' is required"), nil
	}

	params := plan.ReleaseParams{
		Metadata: objectArg(req, "metadata"),
	}
	if _, ok := req.GetArguments()["result"]; ok {
		result := req.GetString("result", "")
		params.Result = &result
	}

	step, err := op(stepID, params)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(step), nil
}
