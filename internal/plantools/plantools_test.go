package plantools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stridemcp/stride/internal/activity"
	"github.com/stridemcp/stride/internal/plan"
	"github.com/stridemcp/stride/internal/storage"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

// newTestScheduler creates a scheduler over a temp-dir database.
func newTestScheduler(t *testing.T) *plan.Scheduler {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := plan.NewStore(db)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return plan.NewScheduler(store)
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// createPlan runs plan_create and returns the decoded plan.
func createPlan(t *testing.T, sched *plan.Scheduler, project, title string) plan.Plan {
	t.Helper()
	tool := NewCreateTool(sched.Store())
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"project": project,
		"title":   title,
	}))
	if err != nil {
		t.Fatalf("plan_create: %v", err)
	}
	if res.IsError {
		t.Fatalf("plan_create error: %s", resultText(res))
	}
	var p plan.Plan
	if err := json.Unmarshal([]byte(resultText(res)), &p); err != nil {
		t.Fatalf("decoding plan: %v", err)
	}
	return p
}

// addStep runs plan_add_step and returns the decoded step.
func addStep(t *testing.T, sched *plan.Scheduler, planID, description string) plan.Step {
	t.Helper()
	tool := NewAddStepTool(sched.Store())
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"plan_id":     planID,
		"description": description,
	}))
	if err != nil {
		t.Fatalf("plan_add_step: %v", err)
	}
	if res.IsError {
		t.Fatalf("plan_add_step error: %s", resultText(res))
	}
	var s plan.Step
	if err := json.Unmarshal([]byte(resultText(res)), &s); err != nil {
		t.Fatalf("decoding step: %v", err)
	}
	return s
}

// ─── Definitions ─────────────────────────────────────────────────────────────

func TestDefinitions_NamesAndRequiredParams(t *testing.T) {
	sched := newTestScheduler(t)
	store := sched.Store()
	svc := activity.NewService(store.DB())

	tests := []struct {
		def      mcp.Tool
		name     string
		required []string
	}{
		{NewCreateTool(store).Definition(), "plan_create", []string{"project", "title"}},
		{NewGetTool(store).Definition(), "plan_get", nil},
		{NewListTool(store).Definition(), "plan_list", nil},
		{NewTitlesTool(store).Definition(), "plan_titles", []string{"project"}},
		{NewUpdateBodyTool(store).Definition(), "plan_update_body", []string{"plan_id", "body"}},
		{NewDeleteTool(store).Definition(), "plan_delete", []string{"plan_id"}},
		{NewAddStepTool(store).Definition(), "plan_add_step", []string{"plan_id", "description"}},
		{NewListStepsTool(store).Definition(), "plan_list_steps", []string{"plan_id"}},
		{NewUpdateStepTool(sched).Definition(), "plan_update_step", []string{"step_id"}},
		{NewClaimNextTool(sched).Definition(), "plan_claim_next", []string{"plan_id"}},
		{NewCompleteStepTool(sched).Definition(), "plan_complete_step", []string{"step_id"}},
		{NewFailStepTool(sched).Definition(), "plan_fail_step", []string{"step_id"}},
		{NewDeferStepTool(sched).Definition(), "plan_defer_step", []string{"step_id"}},
		{NewUndeferStepTool(sched).Definition(), "plan_undefer_step", []string{"step_id"}},
		{NewMarkOutdatedTool(sched).Definition(), "plan_mark_step_outdated", []string{"step_id"}},
		{NewPauseTool(sched).Definition(), "plan_pause", []string{"plan_id"}},
		{NewResumeTool(sched).Definition(), "plan_resume", []string{"plan_id"}},
		{NewActivityFeedTool(svc).Definition(), "activity_feed", nil},
	}

	for _, tt := range tests {
		if tt.def.Name != tt.name {
			t.Errorf("tool name = %q, want %q", tt.def.Name, tt.name)
		}
		for _, want := range tt.required {
			found := false
			for _, r := range tt.def.InputSchema.Required {
				if r == want {
					found = true
				}
			}
			if !found {
				t.Errorf("%s: %q should be required", tt.name, want)
			}
		}
	}
}

// ─── Plan CRUD ───────────────────────────────────────────────────────────────

func TestCreateTool_MissingArgs(t *testing.T) {
	sched := newTestScheduler(t)
	tool := NewCreateTool(sched.Store())

	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"title": "x"}))
	if !res.IsError || !strings.Contains(resultText(res), "project") {
		t.Errorf("missing project: %s", resultText(res))
	}
}

func TestGetTool_ByIDAndByTitle(t *testing.T) {
	sched := newTestScheduler(t)
	p := createPlan(t, sched, "stride", "ship v1")
	tool := NewGetTool(sched.Store())

	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"plan_id": p.ID}))
	if res.IsError {
		t.Fatalf("get by id: %s", resultText(res))
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"project": "stride", "title": "ship v1",
	}))
	if res.IsError {
		t.Fatalf("get by title: %s", resultText(res))
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"plan_id": "nope"}))
	if !res.IsError || !strings.Contains(resultText(res), "plan_not_found") {
		t.Errorf("unknown plan: %s", resultText(res))
	}
}

func TestDeleteTool_RemovesPlan(t *testing.T) {
	sched := newTestScheduler(t)
	p := createPlan(t, sched, "stride", "short lived")

	res, _ := NewDeleteTool(sched.Store()).Handle(context.Background(),
		makeReq(map[string]interface{}{"plan_id": p.ID}))
	if res.IsError {
		t.Fatalf("delete: %s", resultText(res))
	}

	res, _ = NewGetTool(sched.Store()).Handle(context.Background(),
		makeReq(map[string]interface{}{"plan_id": p.ID}))
	if !res.IsError {
		t.Error("plan still retrievable after delete")
	}
}

// ─── Claim flow through tools ────────────────────────────────────────────────

func TestClaimFlow_ClaimCompleteClaim(t *testing.T) {
	sched := newTestScheduler(t)
	p := createPlan(t, sched, "stride", "two steps")
	addStep(t, sched, p.ID, "first")
	addStep(t, sched, p.ID, "second")

	claim := NewClaimNextTool(sched)
	res, _ := claim.Handle(context.Background(), makeReq(map[string]interface{}{"plan_id": p.ID}))
	if res.IsError {
		t.Fatalf("claim: %s", resultText(res))
	}
	var cr plan.ClaimResult
	if err := json.Unmarshal([]byte(resultText(res)), &cr); err != nil {
		t.Fatalf("decoding claim result: %v", err)
	}
	if cr.Outcome != plan.OutcomeClaimed || cr.Step == nil {
		t.Fatalf("outcome = %s", cr.Outcome)
	}
	if cr.Step.Description != "first" {
		t.Errorf("claimed %q, want first", cr.Step.Description)
	}

	// Second claim while locked.
	res, _ = claim.Handle(context.Background(), makeReq(map[string]interface{}{"plan_id": p.ID}))
	var locked plan.ClaimResult
	if err := json.Unmarshal([]byte(resultText(res)), &locked); err != nil {
		t.Fatalf("decoding locked result: %v", err)
	}
	if locked.Outcome != plan.OutcomeLocked {
		t.Errorf("outcome = %s, want plan_locked", locked.Outcome)
	}

	// Complete with a result.
	res, _ = NewCompleteStepTool(sched).Handle(context.Background(), makeReq(map[string]interface{}{
		"step_id": float64(cr.Step.ID),
		"result":  "done",
	}))
	if res.IsError {
		t.Fatalf("complete: %s", resultText(res))
	}
	var done plan.Step
	if err := json.Unmarshal([]byte(resultText(res)), &done); err != nil {
		t.Fatalf("decoding step: %v", err)
	}
	if done.Status != plan.StepCompleted || done.Result == nil || *done.Result != "done" {
		t.Errorf("completed step = %+v", done)
	}

	// Next claim gets the second step.
	res, _ = claim.Handle(context.Background(), makeReq(map[string]interface{}{"plan_id": p.ID}))
	var next plan.ClaimResult
	if err := json.Unmarshal([]byte(resultText(res)), &next); err != nil {
		t.Fatalf("decoding next claim: %v", err)
	}
	if next.Outcome != plan.OutcomeClaimed || next.Step.Description != "second" {
		t.Errorf("next claim = %+v", next)
	}
}

func TestCompleteStepTool_NotClaimed(t *testing.T) {
	sched := newTestScheduler(t)
	p := createPlan(t, sched, "stride", "plan")
	s := addStep(t, sched, p.ID, "unclaimed")

	res, _ := NewCompleteStepTool(sched).Handle(context.Background(), makeReq(map[string]interface{}{
		"step_id": float64(s.ID),
	}))
	if !res.IsError || !strings.Contains(resultText(res), "step_not_in_progress") {
		t.Errorf("completing unclaimed step: %s", resultText(res))
	}
}

func TestFailStepTool_FailsPlan(t *testing.T) {
	sched := newTestScheduler(t)
	p := createPlan(t, sched, "stride", "plan")
	addStep(t, sched, p.ID, "only")

	claim := NewClaimNextTool(sched)
	res, _ := claim.Handle(context.Background(), makeReq(map[string]interface{}{"plan_id": p.ID}))
	var cr plan.ClaimResult
	if err := json.Unmarshal([]byte(resultText(res)), &cr); err != nil {
		t.Fatalf("decoding claim: %v", err)
	}

	res, _ = NewFailStepTool(sched).Handle(context.Background(), makeReq(map[string]interface{}{
		"step_id": float64(cr.Step.ID),
		"result":  "boom",
	}))
	if res.IsError {
		t.Fatalf("fail: %s", resultText(res))
	}

	// A failed plan refuses claims.
	res, _ = claim.Handle(context.Background(), makeReq(map[string]interface{}{"plan_id": p.ID}))
	var after plan.ClaimResult
	if err := json.Unmarshal([]byte(resultText(res)), &after); err != nil {
		t.Fatalf("decoding claim: %v", err)
	}
	if after.Outcome != plan.OutcomeNotActive {
		t.Errorf("claim on failed plan = %s, want plan_not_active", after.Outcome)
	}
}

// ─── Lifecycle tools ─────────────────────────────────────────────────────────

func TestDeferUndefer_RoundTrip(t *testing.T) {
	sched := newTestScheduler(t)
	p := createPlan(t, sched, "stride", "plan")
	s := addStep(t, sched, p.ID, "later")

	res, _ := NewDeferStepTool(sched).Handle(context.Background(), makeReq(map[string]interface{}{
		"step_id": float64(s.ID),
	}))
	if res.IsError {
		t.Fatalf("defer: %s", resultText(res))
	}

	res, _ = NewUndeferStepTool(sched).Handle(context.Background(), makeReq(map[string]interface{}{
		"step_id": float64(s.ID),
	}))
	if res.IsError {
		t.Fatalf("undefer: %s", resultText(res))
	}
	var back plan.Step
	if err := json.Unmarshal([]byte(resultText(res)), &back); err != nil {
		t.Fatalf("decoding step: %v", err)
	}
	if back.Status != plan.StepPending {
		t.Errorf("status = %s, want pending", back.Status)
	}
}

func TestUpdateStepTool_RejectsClaimViaStatus(t *testing.T) {
	sched := newTestScheduler(t)
	p := createPlan(t, sched, "stride", "plan")
	s := addStep(t, sched, p.ID, "step")

	res, _ := NewUpdateStepTool(sched).Handle(context.Background(), makeReq(map[string]interface{}{
		"step_id": float64(s.ID),
		"status":  "in_progress",
	}))
	if !res.IsError || !strings.Contains(resultText(res), "invalid_transition") {
		t.Errorf("direct in_progress write: %s", resultText(res))
	}
}

func TestPauseResumeTools(t *testing.T) {
	sched := newTestScheduler(t)
	p := createPlan(t, sched, "stride", "plan")
	addStep(t, sched, p.ID, "step")

	res, _ := NewPauseTool(sched).Handle(context.Background(), makeReq(map[string]interface{}{
		"plan_id": p.ID,
	}))
	if res.IsError {
		t.Fatalf("pause: %s", resultText(res))
	}

	claimRes, _ := NewClaimNextTool(sched).Handle(context.Background(), makeReq(map[string]interface{}{
		"plan_id": p.ID,
	}))
	var cr plan.ClaimResult
	if err := json.Unmarshal([]byte(resultText(claimRes)), &cr); err != nil {
		t.Fatalf("decoding claim: %v", err)
	}
	if cr.Outcome != plan.OutcomeNotActive {
		t.Errorf("claim on paused plan = %s", cr.Outcome)
	}

	res, _ = NewResumeTool(sched).Handle(context.Background(), makeReq(map[string]interface{}{
		"plan_id": p.ID,
	}))
	if res.IsError {
		t.Fatalf("resume: %s", resultText(res))
	}

	// Double resume is an error.
	res, _ = NewResumeTool(sched).Handle(context.Background(), makeReq(map[string]interface{}{
		"plan_id": p.ID,
	}))
	if !res.IsError || !strings.Contains(resultText(res), "not_paused") {
		t.Errorf("double resume: %s", resultText(res))
	}
}

// ─── Activity feed tool ──────────────────────────────────────────────────────

func TestActivityFeedTool(t *testing.T) {
	sched := newTestScheduler(t)
	p := createPlan(t, sched, "stride", "plan")
	addStep(t, sched, p.ID, "step")

	svc := activity.NewService(sched.Store().DB())
	res, _ := NewActivityFeedTool(svc).Handle(context.Background(), makeReq(map[string]interface{}{
		"project": "stride",
	}))
	if res.IsError {
		t.Fatalf("feed: %s", resultText(res))
	}
	var events []activity.Event
	if err := json.Unmarshal([]byte(resultText(res)), &events); err != nil {
		t.Fatalf("decoding events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
}
