package plan_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stridemcp/stride/internal/plan"
	"github.com/stridemcp/stride/internal/storage"
)

// newTestStore creates a plan store backed by a temp-dir SQLite
// database for isolation.
func newTestStore(t *testing.T) *plan.Store {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := plan.NewStore(db)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return s
}

// createPlan is a shorthand for tests that just need a plan to exist.
func createPlan(t *testing.T, s *plan.Store, project, title string) *plan.Plan {
	t.Helper()
	p, err := s.CreatePlan(plan.CreatePlanParams{Project: project, Title: title})
	if err != nil {
		t.Fatalf("creating plan: %v", err)
	}
	return p
}

// ─── Plans ──────────────────────────────────────────────────────────────────

func TestCreatePlan_Defaults(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreatePlan(plan.CreatePlanParams{
		Project: "proj",
		Title:   "migrate auth",
		Body:    "move sessions to tokens",
		Tags:    []string{"auth", "backend"},
		Files:   []string{"internal/auth/session.go"},
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	if p.ID == "" {
		t.Error("ID should be set")
	}
	if p.Status != plan.PlanIdle {
		t.Errorf("Status = %s, want idle", p.Status)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "auth" {
		t.Errorf("Tags = %v", p.Tags)
	}
	if p.InsertedAt == "" {
		t.Error("InsertedAt should be set")
	}
}

func TestCreatePlan_RequiresProjectAndTitle(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreatePlan(plan.CreatePlanParams{Title: "t"}); !errors.Is(err, plan.ErrValidation) {
		t.Errorf("missing project: %v, want ErrValidation", err)
	}
	if _, err := s.CreatePlan(plan.CreatePlanParams{Project: "p"}); !errors.Is(err, plan.ErrValidation) {
		t.Errorf("missing title: %v, want ErrValidation", err)
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetPlan("nope"); !errors.Is(err, plan.ErrPlanNotFound) {
		t.Errorf("error = %v, want ErrPlanNotFound", err)
	}
}

func TestGetPlanByTitle(t *testing.T) {
	s := newTestStore(t)
	created := createPlan(t, s, "proj", "release checklist")
	createPlan(t, s, "other-proj", "release checklist")

	got, err := s.GetPlanByTitle("proj", "release checklist")
	if err != nil {
		t.Fatalf("GetPlanByTitle: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %s, want %s", got.ID, created.ID)
	}

	if _, err := s.GetPlanByTitle("proj", "missing"); !errors.Is(err, plan.ErrPlanNotFound) {
		t.Errorf("missing title: %v, want ErrPlanNotFound", err)
	}
}

func TestListPlans_FilterAndLimit(t *testing.T) {
	s := newTestStore(t)
	createPlan(t, s, "proj", "a")
	createPlan(t, s, "proj", "b")
	createPlan(t, s, "proj", "b")
	createPlan(t, s, "other", "c")

	all, err := s.ListPlans(plan.ListPlansParams{Project: "proj"})
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}

	byTitle, err := s.ListPlans(plan.ListPlansParams{Project: "proj", Title: "b"})
	if err != nil {
		t.Fatalf("ListPlans by title: %v", err)
	}
	if len(byTitle) != 2 {
		t.Errorf("filtered len = %d, want 2", len(byTitle))
	}

	limited, err := s.ListPlans(plan.ListPlansParams{Project: "proj", Limit: 1})
	if err != nil {
		t.Fatalf("ListPlans limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited len = %d, want 1", len(limited))
	}
}

func TestListTitles_DistinctSorted(t *testing.T) {
	s := newTestStore(t)
	createPlan(t, s, "proj", "zeta")
	createPlan(t, s, "proj", "alpha")
	createPlan(t, s, "proj", "alpha")

	titles, err := s.ListTitles("proj")
	if err != nil {
		t.Fatalf("ListTitles: %v", err)
	}
	if len(titles) != 2 || titles[0] != "alpha" || titles[1] != "zeta" {
		t.Errorf("titles = %v, want [alpha zeta]", titles)
	}
}

func TestUpdatePlanBody(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")

	updated, err := s.UpdatePlanBody(p.ID, "new body")
	if err != nil {
		t.Fatalf("UpdatePlanBody: %v", err)
	}
	if updated.Body != "new body" {
		t.Errorf("Body = %q", updated.Body)
	}

	if _, err := s.UpdatePlanBody("nope", "x"); !errors.Is(err, plan.ErrPlanNotFound) {
		t.Errorf("missing plan: %v, want ErrPlanNotFound", err)
	}
}

func TestDeletePlan_CascadesToSteps(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")
	step, err := s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "one"})
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}

	if err := s.DeletePlan(p.ID); err != nil {
		t.Fatalf("DeletePlan: %v", err)
	}
	if _, err := s.GetPlan(p.ID); !errors.Is(err, plan.ErrPlanNotFound) {
		t.Errorf("plan still exists: %v", err)
	}
	if _, err := s.GetStep(step.ID); !errors.Is(err, plan.ErrStepNotFound) {
		t.Errorf("step survived cascade: %v", err)
	}

	if err := s.DeletePlan(p.ID); !errors.Is(err, plan.ErrPlanNotFound) {
		t.Errorf("second delete: %v, want ErrPlanNotFound", err)
	}
}

func TestDeletePlan_CascadesOnFreshPoolConnection(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")
	step, err := s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "one"})
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}

	// Pin the connection that served the writes so far; the delete is
	// then forced onto a fresh pool connection, which must enforce the
	// cascade just the same.
	ctx := context.Background()
	pinned, err := s.DB().Conn(ctx)
	if err != nil {
		t.Fatalf("pinning connection: %v", err)
	}
	defer pinned.Close()

	if err := s.DeletePlan(p.ID); err != nil {
		t.Fatalf("DeletePlan: %v", err)
	}
	if _, err := s.GetStep(step.ID); !errors.Is(err, plan.ErrStepNotFound) {
		t.Errorf("step survived cascade on fresh connection: %v", err)
	}
}

// ─── Step ordering ──────────────────────────────────────────────────────────

func TestAddStep_AppendNumbersFromOne(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")

	first, err := s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "a"})
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}
	if first.StepNumber != 1.0 {
		t.Errorf("first number = %g, want 1", first.StepNumber)
	}
	if first.Status != plan.StepPending {
		t.Errorf("status = %s, want pending", first.Status)
	}
	if first.CreatedBy != plan.CreatedByAgent {
		t.Errorf("created_by = %s, want agent", first.CreatedBy)
	}

	second, err := s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "b"})
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}
	if second.StepNumber != 2.0 {
		t.Errorf("second number = %g, want 2", second.StepNumber)
	}
}

func TestAddStep_InsertAfterMidpoint(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")
	s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "a"}) // 1.0
	s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "b"}) // 2.0

	after := 1.0
	mid, err := s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "between", AfterStep: &after})
	if err != nil {
		t.Fatalf("AddStep after: %v", err)
	}
	if mid.StepNumber != 1.5 {
		t.Errorf("midpoint = %g, want 1.5", mid.StepNumber)
	}

	// after the last step: last + 1.0
	last := 2.0
	tail, err := s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "tail", AfterStep: &last})
	if err != nil {
		t.Fatalf("AddStep after last: %v", err)
	}
	if tail.StepNumber != 3.0 {
		t.Errorf("tail = %g, want 3", tail.StepNumber)
	}
}

func TestAddStep_RepeatedMidpointsNeverCollide(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")
	s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "a"}) // 1.0
	s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "b"}) // 2.0

	after := 1.0
	prev := 1.0
	for i := 0; i < 20; i++ {
		st, err := s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "wedge", AfterStep: &after})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if st.StepNumber <= prev || st.StepNumber >= 2.0 {
			t.Fatalf("insert %d: number %g not strictly between %g and 2", i, st.StepNumber, prev)
		}
	}
}

func TestAddStep_ExplicitNumberWinsOverAfterStep(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")
	s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "a"}) // 1.0

	num := 7.5
	after := 1.0
	st, err := s.AddStep(plan.AddStepParams{
		PlanID: p.ID, Description: "explicit", StepNumber: &num, AfterStep: &after,
	})
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}
	if st.StepNumber != 7.5 {
		t.Errorf("number = %g, want 7.5", st.StepNumber)
	}
}

func TestAddStep_DuplicateNumberRejected(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")
	s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "a"}) // 1.0

	num := 1.0
	_, err := s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "dup", StepNumber: &num})
	if !errors.Is(err, plan.ErrDuplicateStepNumber) {
		t.Errorf("error = %v, want ErrDuplicateStepNumber", err)
	}

	// Same number in a different plan is fine.
	other := createPlan(t, s, "proj", "other")
	if _, err := s.AddStep(plan.AddStepParams{PlanID: other.ID, Description: "ok", StepNumber: &num}); err != nil {
		t.Errorf("same number, other plan: %v", err)
	}
}

func TestAddStep_MissingPlanAndDescription(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.AddStep(plan.AddStepParams{PlanID: "nope", Description: "x"}); !errors.Is(err, plan.ErrPlanNotFound) {
		t.Errorf("missing plan: %v, want ErrPlanNotFound", err)
	}

	p := createPlan(t, s, "proj", "t")
	if _, err := s.AddStep(plan.AddStepParams{PlanID: p.ID}); !errors.Is(err, plan.ErrValidation) {
		t.Errorf("missing description: %v, want ErrValidation", err)
	}
	if _, err := s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "x", CreatedBy: "robot"}); !errors.Is(err, plan.ErrValidation) {
		t.Errorf("bad created_by: %v, want ErrValidation", err)
	}
}

func TestListSteps_OrderAndFilter(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")
	n3, n1 := 3.0, 1.0
	s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "third", StepNumber: &n3})
	s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "first", StepNumber: &n1})

	steps, err := s.ListSteps(p.ID, "")
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	if len(steps) != 2 || steps[0].Description != "first" || steps[1].Description != "third" {
		t.Errorf("order wrong: %+v", steps)
	}

	pending, err := s.ListSteps(p.ID, plan.StepPending)
	if err != nil {
		t.Fatalf("ListSteps filtered: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending len = %d, want 2", len(pending))
	}

	if _, err := s.ListSteps(p.ID, plan.StepStatus("bogus")); !errors.Is(err, plan.ErrValidation) {
		t.Errorf("bogus filter: %v, want ErrValidation", err)
	}
}

func TestGetStepByNumber(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")
	created, _ := s.AddStep(plan.AddStepParams{PlanID: p.ID, Description: "a"})

	got, err := s.GetStepByNumber(p.ID, 1.0)
	if err != nil {
		t.Fatalf("GetStepByNumber: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %d, want %d", got.ID, created.ID)
	}

	if _, err := s.GetStepByNumber(p.ID, 9.0); !errors.Is(err, plan.ErrStepNotFound) {
		t.Errorf("missing number: %v, want ErrStepNotFound", err)
	}
}

func TestAddStep_MetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	p := createPlan(t, s, "proj", "t")

	st, err := s.AddStep(plan.AddStepParams{
		PlanID:      p.ID,
		Description: "with metadata",
		Metadata:    map[string]any{"owner": "agent-7", "retries": float64(2)},
	})
	if err != nil {
		t.Fatalf("AddStep: %v", err)
	}
	if st.Metadata["owner"] != "agent-7" {
		t.Errorf("Metadata = %v", st.Metadata)
	}
	if st.Result != nil {
		t.Errorf("Result should start nil, got %v", *st.Result)
	}
}
