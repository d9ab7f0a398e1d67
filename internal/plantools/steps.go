package plantools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/plan"
)

// AddStepTool handles the plan_add_step MCP tool.
type AddStepTool struct {
	store *plan.Store
}

// NewAddStepTool creates an AddStepTool with the given plan store.
func NewAddStepTool(store *plan.Store) *AddStepTool {
	return &AddStepTool{store: store}
}

// Definition returns the MCP tool definition for plan_add_step.
func (t *AddStepTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_add_step",
		mcp.WithDescription(
			"Add a step to a plan. By default the step is appended after the "+
				"current last step. Pass 'after_step' to insert between existing "+
				"steps (fractional numbering, no renumbering), or 'step_number' "+
				"to pin an exact position.",
		),
		mcp.WithString("plan_id",
			mcp.Required(),
			mcp.Description("Plan ID"),
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("What this step does"),
		),
		mcp.WithNumber("step_number",
			mcp.Description("Exact position; fails if taken. Wins over after_step"),
		),
		mcp.WithNumber("after_step",
			mcp.Description("Insert after this existing step number"),
		),
		mcp.WithString("created_by",
			mcp.Description("Who added the step: user or agent (default: agent)"),
		),
		mcp.WithObject("metadata",
			mcp.Description("Arbitrary JSON metadata attached to the step"),
		),
	)
}

// Handle processes the plan_add_step tool call.
func (t *AddStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	description := req.GetString("description", "")
	if planID == "" {
		return mcp.NewToolResultError("'plan_id' is required"), nil
	}
	if description == "" {
		return mcp.NewToolResultError("'description' is required"), nil
	}

	step, err := t.store.AddStep(plan.AddStepParams{
		PlanID:      planID,
		Description: description,
		StepNumber:  floatArg(req, "step_number"),
		AfterStep:   floatArg(req, "after_step"),
		CreatedBy:   plan.Creator(req.GetString("created_by", "")),
		Metadata:    objectArg(req, "metadata"),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(step), nil
}

// ListStepsTool handles the plan_list_steps MCP tool.
type ListStepsTool struct {
	store *plan.Store
}

// NewListStepsTool creates a ListStepsTool with the given plan store.
func NewListStepsTool(store *plan.Store) *ListStepsTool {
	return &ListStepsTool{store: store}
}

// Definition returns the MCP tool definition for plan_list_steps.
func (t *ListStepsTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_list_steps",
		mcp.WithDescription(
			"List a plan's steps in execution order (ascending step number), "+
				"optionally filtered to one status.",
		),
		mcp.WithString("plan_id",
			mcp.Required(),
			mcp.Description("Plan ID"),
		),
		mcp.WithString("status",
			mcp.Description("Filter: pending, in_progress, completed, failed, deferred, or outdated"),
		),
	)
}

// Handle processes the plan_list_steps tool call.
func (t *ListStepsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("'plan_id' is required"), nil
	}

	steps, err := t.store.ListSteps(planID, plan.StepStatus(req.GetString("status", "")))
	if err != nil {
		return errorResult(err), nil
	}
	if len(steps) == 0 {
		return mcp.NewToolResultText("No steps found."), nil
	}
	return jsonResult(steps), nil
}

// UpdateStepTool handles the plan_update_step MCP tool.
type UpdateStepTool struct {
	sched *plan.Scheduler
}

// NewUpdateStepTool creates an UpdateStepTool with the given scheduler.
func NewUpdateStepTool(sched *plan.Scheduler) *UpdateStepTool {
	return &UpdateStepTool{sched: sched}
}

// Definition returns the MCP tool definition for plan_update_step.
func (t *UpdateStepTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_update_step",
		mcp.WithDescription(
			"Update a step's result, metadata, and optionally its status. "+
				"Status changes are validated against the step lifecycle; "+
				"'in_progress' is reserved for plan_claim_next and rejected here. "+
				"Metadata keys merge into the existing metadata.",
		),
		mcp.WithNumber("step_id",
			mcp.Required(),
			mcp.Description("Step ID"),
		),
		mcp.WithString("status",
			mcp.Description("New status (validated transition)"),
		),
		mcp.WithString("result",
			mcp.Description("Result text to record on the step"),
		),
		mcp.WithObject("metadata",
			mcp.Description("Metadata keys to merge in"),
		),
	)
}

// Handle processes the plan_update_step tool call.
func (t *UpdateStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stepID := int64Arg(req, "step_id", 0)
	if stepID == 0 {
		return mcp.NewToolResultError("'step_id' is required"), nil
	}

	params := plan.UpdateStepParams{
		Metadata: objectArg(req, "metadata"),
	}
	if s := req.GetString("status", ""); s != "" {
		status := plan.StepStatus(s)
		params.Status = &status
	}
	if _, ok := req.GetArguments()["result"]; ok {
		result := req.GetString("result", "")
		params.Result = &result
	}

	step, err := t.sched.UpdateStep(stepID, params)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(step), nil
}
