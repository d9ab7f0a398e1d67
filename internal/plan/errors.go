package plan

import "errors"

// The engine's failure modes form a small closed set of named
// conditions. Callers match with errors.Is; the enclosing tool layer
// maps them onto protocol error strings. Contention during a claim is
// NOT in this set — it is a ClaimOutcome, see types.go.
var (
	// ErrPlanNotFound means the referenced plan does not exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrStepNotFound means the referenced step does not exist.
	ErrStepNotFound = errors.New("step not found")

	// ErrInvalidTransition means a status write was requested that the
	// step transition table does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStepNotInProgress means complete or fail was attempted on a
	// step that is not currently claimed.
	ErrStepNotInProgress = errors.New("step not in progress")

	// ErrCannotMarkOutdated means the step is already outdated.
	ErrCannotMarkOutdated = errors.New("cannot mark step outdated")

	// ErrCannotPause means the plan is completed or failed and cannot
	// be paused.
	ErrCannotPause = errors.New("cannot pause plan")

	// ErrNotPaused means resume was attempted on a plan that is not
	// paused.
	ErrNotPaused = errors.New("plan not paused")

	// ErrCanOnlyDeferPending means defer was attempted on a non-pending
	// step.
	ErrCanOnlyDeferPending = errors.New("can only defer pending steps")

	// ErrNotDeferred means undefer was attempted on a step that is not
	// deferred.
	ErrNotDeferred = errors.New("step not deferred")

	// ErrDuplicateStepNumber means an insert collided with an existing
	// step_number in the same plan.
	ErrDuplicateStepNumber = errors.New("step number already used in plan")

	// ErrValidation means required fields were missing or malformed.
	ErrValidation = errors.New("validation failed")
)
