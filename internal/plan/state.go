package plan

import "fmt"

// ─── Step status state machine ───────────────────────────────────────────────
//
// The full transition table lives in one place so every status write in
// the engine is validated by the same function, not scattered checks.
//
//	pending     → in_progress   (claim only — see ValidateDirectTransition)
//	pending     → deferred
//	pending     → outdated
//	in_progress → completed
//	in_progress → failed
//	in_progress → outdated
//	deferred    → pending
//
// completed, failed, and outdated are terminal: no transition out.

var stepTransitions = map[StepStatus]map[StepStatus]struct{}{
	StepPending: {
		StepInProgress: {},
		StepDeferred:   {},
		StepOutdated:   {},
	},
	StepInProgress: {
		StepCompleted: {},
		StepFailed:    {},
		StepOutdated:  {},
	},
	StepDeferred: {
		StepPending: {},
	},
}

// CanTransition reports whether the step transition table allows
// from → to.
func CanTransition(from, to StepStatus) bool {
	_, ok := stepTransitions[from][to]
	return ok
}

// ValidateTransition returns ErrInvalidTransition if from → to is not in
// the transition table.
func ValidateTransition(from, to StepStatus) error {
	if !validStepStatuses[to] {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// ValidateDirectTransition validates a status write requested through
// the general update operation. It applies the transition table plus
// one extra rule: in_progress is only reachable through ClaimNext, so a
// direct write to in_progress is rejected even though the table allows
// the claim path.
func ValidateDirectTransition(from, to StepStatus) error {
	if to == StepInProgress {
		return fmt.Errorf("%w: %s → %s is reserved for claim", ErrInvalidTransition, from, to)
	}
	return ValidateTransition(from, to)
}

// IsTerminal reports whether a step status accepts no further
// transitions.
func IsTerminal(s StepStatus) bool {
	return s == StepCompleted || s == StepFailed || s == StepOutdated
}

// ─── Plan status state machine ───────────────────────────────────────────────
//
// Plan status is derived from step lifecycle events, never stored
// independently of them outside a guarding transaction:
//
//	idle    → running    claim succeeds
//	running → idle       in-progress step completed or marked outdated
//	running → failed     in-progress step failed
//	idle    → completed  claim finds no pending step
//	idle    → paused     explicit pause
//	running → paused     explicit pause (freezes scheduling, step keeps
//	                     its status)
//	paused  → idle       explicit resume

// planStatusAfterRelease returns the plan status that follows releasing
// an in-progress step into the given terminal status.
func planStatusAfterRelease(to StepStatus) PlanStatus {
	if to == StepFailed {
		return PlanFailed
	}
	// completed and outdated both release the plan back to idle.
	return PlanIdle
}

// ValidatePause returns ErrCannotPause unless the plan is idle or
// running. Pausing while a step is in_progress freezes scheduling but
// leaves the step's status untouched.
func ValidatePause(status PlanStatus) error {
	if status != PlanIdle && status != PlanRunning {
		return fmt.Errorf("%w: plan is %s", ErrCannotPause, status)
	}
	return nil
}

// ValidateResume returns ErrNotPaused unless the plan is paused.
func ValidateResume(status PlanStatus) error {
	if status != PlanPaused {
		return fmt.Errorf("%w: plan is %s", ErrNotPaused, status)
	}
	return nil
}
