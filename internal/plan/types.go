// Package plan implements the plan execution engine: ordered, resumable
// task lists that one agent works through a single step at a time.
//
// The engine has three layers, each in its own file:
//   - types + enums (this file)
//   - state machines for step and plan status (state.go)
//   - persistence over SQLite (store.go) and the atomic claim
//     scheduler built on top of it (scheduler.go)
//
// Correctness hinges on one invariant: at most one step of a plan is
// in_progress at any time, and plan.status == running exactly when such
// a step exists. Everything that mutates status goes through the
// Scheduler's transactional operations; nothing writes status fields
// directly.
package plan

// ─── Plan status enum ────────────────────────────────────────────────────────

// PlanStatus tracks the scheduling lifecycle of a plan.
type PlanStatus string

const (
	PlanIdle      PlanStatus = "idle"
	PlanRunning   PlanStatus = "running"
	PlanPaused    PlanStatus = "paused"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// ─── Step status enum ────────────────────────────────────────────────────────

// StepStatus tracks the lifecycle of a single step.
//
// pending is the initial state. in_progress is reachable only through
// Scheduler.ClaimNext, never through a direct status write. completed,
// failed, and outdated are terminal. deferred parks a pending step and
// can return to pending via undefer.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepDeferred   StepStatus = "deferred"
	StepOutdated   StepStatus = "outdated"
)

// validStepStatuses is the set of recognized step statuses.
var validStepStatuses = map[StepStatus]bool{
	StepPending:    true,
	StepInProgress: true,
	StepCompleted:  true,
	StepFailed:     true,
	StepDeferred:   true,
	StepOutdated:   true,
}

// ─── Creator enum ────────────────────────────────────────────────────────────

// Creator records who added a step.
type Creator string

const (
	CreatedByUser  Creator = "user"
	CreatedByAgent Creator = "agent"
)

// ─── Entities ────────────────────────────────────────────────────────────────

// Plan is an ordered, resumable unit of work owning a list of steps.
type Plan struct {
	ID         string     `json:"id"`
	Project    string     `json:"project"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	Tags       []string   `json:"tags"`
	Files      []string   `json:"files"`
	Status     PlanStatus `json:"status"`
	InsertedAt string     `json:"inserted_at"`
}

// Step is one unit of work within a plan. StepNumber is a float so new
// steps can be inserted between existing ones without renumbering;
// execution order is ascending StepNumber, unique per plan.
type Step struct {
	ID          int64          `json:"id"`
	PlanID      string         `json:"plan_id"`
	StepNumber  float64        `json:"step_number"`
	Description string         `json:"description"`
	Status      StepStatus     `json:"status"`
	CreatedBy   Creator        `json:"created_by"`
	Result      *string        `json:"result,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	InsertedAt  string         `json:"inserted_at"`
}

// ─── Operation parameters ────────────────────────────────────────────────────

// CreatePlanParams holds the input for creating a new plan.
type CreatePlanParams struct {
	Project string   `json:"project"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Tags    []string `json:"tags,omitempty"`
	Files   []string `json:"files,omitempty"`
}

// AddStepParams holds the input for appending or inserting a step.
// StepNumber takes precedence over AfterStep when both are given;
// with neither, the step is appended after the current maximum.
type AddStepParams struct {
	PlanID      string         `json:"plan_id"`
	Description string         `json:"description"`
	StepNumber  *float64       `json:"step_number,omitempty"`
	AfterStep   *float64       `json:"after_step,omitempty"`
	CreatedBy   Creator        `json:"created_by,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UpdateStepParams holds a partial step update. Metadata is shallow-merged
// into the existing map, never replaced wholesale. A Status, if present,
// is validated against the step transition table.
type UpdateStepParams struct {
	Status   *StepStatus    `json:"status,omitempty"`
	Result   *string        `json:"result,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ReleaseParams holds the optional terminal fields for complete, fail,
// and mark-outdated operations.
type ReleaseParams struct {
	Result   *string        `json:"result,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ListPlansParams filters ListPlans. Zero values mean no filter;
// Limit <= 0 applies the store default.
type ListPlansParams struct {
	Project string `json:"project"`
	Title   string `json:"title,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// ─── Claim outcome ───────────────────────────────────────────────────────────

// ClaimOutcome is the result classification of a ClaimNext call.
// Contention (OutcomeLocked) is a normal outcome, not an error, so
// callers can retry at their own discretion.
type ClaimOutcome string

const (
	// OutcomeClaimed means a step was transitioned to in_progress and
	// the plan to running.
	OutcomeClaimed ClaimOutcome = "claimed"
	// OutcomeLocked means another step of the plan is already in_progress.
	OutcomeLocked ClaimOutcome = "plan_locked"
	// OutcomeCompleted means no pending step exists; the plan has been
	// marked completed.
	OutcomeCompleted ClaimOutcome = "plan_completed"
	// OutcomeNotActive means the plan is paused or failed and accepts
	// no claims.
	OutcomeNotActive ClaimOutcome = "plan_not_active"
)

// ClaimResult is the outcome of ClaimNext. Step is non-nil only when
// Outcome == OutcomeClaimed.
type ClaimResult struct {
	Outcome ClaimOutcome `json:"outcome"`
	Step    *Step        `json:"step,omitempty"`
}
