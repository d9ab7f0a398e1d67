package plan

import (
	"database/sql"
	"errors"
	"fmt"
)

// Scheduler performs every status-mutating operation on plans and
// steps. Each operation runs as a single transaction whose decisive
// write is a conditional UPDATE guarded by RowsAffected — a
// compare-and-swap against the storage layer. Callers may live in
// separate processes, so no in-process lock is ever part of the
// exclusion story: a caller that loses a race observes zero affected
// rows and gets the contention outcome immediately (try-lock
// semantics), never a queue.
type Scheduler struct {
	store *Store
	db    *sql.DB
}

// NewScheduler creates a Scheduler over the plan store's database.
func NewScheduler(store *Store) *Scheduler {
	return &Scheduler{store: store, db: store.DB()}
}

// Store returns the underlying plan store for content operations.
func (s *Scheduler) Store() *Store {
	return s.store
}

// ─── Claim ───────────────────────────────────────────────────────────────────

// ClaimNext atomically selects the pending step with the smallest
// step_number, transitions it to in_progress, and transitions the plan
// to running. Exactly one of four outcomes is returned:
//
//   - OutcomeClaimed with the step
//   - OutcomeLocked if another step is already in_progress
//   - OutcomeCompleted if no pending step exists (the plan is marked
//     completed as a side effect)
//   - OutcomeNotActive if the plan is paused or failed
//
// A missing plan is ErrPlanNotFound. Among concurrent claimants exactly
// one succeeds; the rest observe OutcomeLocked.
func (s *Scheduler) ClaimNext(planID string) (*ClaimResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status PlanStatus
	if err := tx.QueryRow(`SELECT status FROM plans WHERE id = ?`, planID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
		}
		return nil, fmt.Errorf("reading plan status: %w", err)
	}

	switch status {
	case PlanPaused, PlanFailed:
		return &ClaimResult{Outcome: OutcomeNotActive}, nil
	case PlanCompleted:
		return &ClaimResult{Outcome: OutcomeCompleted}, nil
	}

	var inProgress int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM plan_steps WHERE plan_id = ? AND status = ?`,
		planID, StepInProgress,
	).Scan(&inProgress); err != nil {
		return nil, fmt.Errorf("counting in-progress steps: %w", err)
	}
	if inProgress > 0 {
		return &ClaimResult{Outcome: OutcomeLocked}, nil
	}

	var stepID int64
	err = tx.QueryRow(
		`SELECT id FROM plan_steps
		 WHERE plan_id = ? AND status = ?
		 ORDER BY step_number ASC LIMIT 1`,
		planID, StepPending,
	).Scan(&stepID)
	if errors.Is(err, sql.ErrNoRows) {
		// Nothing left to claim: the plan is done.
		if _, err := tx.Exec(
			`UPDATE plans SET status = ? WHERE id = ? AND status = ?`,
			PlanCompleted, planID, status,
		); err != nil {
			return nil, fmt.Errorf("completing plan: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		return &ClaimResult{Outcome: OutcomeCompleted}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting next step: %w", err)
	}

	// The decisive write. The status guard plus the NOT EXISTS subquery
	// make this safe even if another claimant committed between our
	// reads and this statement: the loser affects zero rows.
	res, err := tx.Exec(
		`UPDATE plan_steps SET status = ?
		 WHERE id = ? AND status = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM plan_steps WHERE plan_id = ? AND status = ?
		   )`,
		StepInProgress, stepID, StepPending, planID, StepInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming step: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ClaimResult{Outcome: OutcomeLocked}, nil
	}

	if _, err := tx.Exec(
		`UPDATE plans SET status = ? WHERE id = ?`,
		PlanRunning, planID,
	); err != nil {
		return nil, fmt.Errorf("marking plan running: %w", err)
	}

	step, err := getStepTx(tx, stepID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &ClaimResult{Outcome: OutcomeClaimed, Step: step}, nil
}

// ─── Release operations ──────────────────────────────────────────────────────

// CompleteStep transitions an in-progress step to completed and
// releases the plan back to idle.
func (s *Scheduler) CompleteStep(stepID int64, p ReleaseParams) (*Step, error) {
	return s.releaseStep(stepID, StepCompleted, p)
}

// FailStep transitions an in-progress step to failed and transitions
// the plan to failed.
func (s *Scheduler) FailStep(stepID int64, p ReleaseParams) (*Step, error) {
	return s.releaseStep(stepID, StepFailed, p)
}

// releaseStep is the shared complete/fail path. It requires the step to
// currently be in_progress and updates the step and the owning plan in
// one transaction, mirroring the locking discipline of ClaimNext.
func (s *Scheduler) releaseStep(stepID int64, to StepStatus, p ReleaseParams) (*Step, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	step, err := getStepTx(tx, stepID)
	if err != nil {
		return nil, err
	}
	if step.Status != StepInProgress {
		return nil, fmt.Errorf("%w: step %d is %s", ErrStepNotInProgress, stepID, step.Status)
	}

	if err := s.writeRelease(tx, step, to, p); err != nil {
		return nil, err
	}

	released, err := getStepTx(tx, stepID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return released, nil
}

// writeRelease performs the guarded step write and the symmetric plan
// status update for a transition out of in_progress. The plan update is
// conditional on the plan still being running: a plan paused while its
// step was in flight keeps its paused status.
func (s *Scheduler) writeRelease(tx *sql.Tx, step *Step, to StepStatus, p ReleaseParams) error {
	result := step.Result
	if p.Result != nil {
		result = p.Result
	}
	metadata := mergeMetadata(step.Metadata, p.Metadata)

	res, err := tx.Exec(
		`UPDATE plan_steps SET status = ?, result = ?, metadata = ?
		 WHERE id = ? AND status = ?`,
		to, result, marshalMetadata(metadata), step.ID, StepInProgress,
	)
	if err != nil {
		return fmt.Errorf("releasing step: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: step %d lost its claim", ErrStepNotInProgress, step.ID)
	}

	if _, err := tx.Exec(
		`UPDATE plans SET status = ? WHERE id = ? AND status = ?`,
		planStatusAfterRelease(to), step.PlanID, PlanRunning,
	); err != nil {
		return fmt.Errorf("releasing plan: %w", err)
	}
	return nil
}

// MarkStepOutdated marks a pending or in-progress step outdated. An
// in-progress step additionally releases the plan back to idle — the
// work is abandoned without success or failure. Re-marking an outdated
// step is ErrCannotMarkOutdated; marking a completed, failed, or
// deferred step is an invalid transition.
func (s *Scheduler) MarkStepOutdated(stepID int64, p ReleaseParams) (*Step, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	step, err := getStepTx(tx, stepID)
	if err != nil {
		return nil, err
	}

	switch step.Status {
	case StepOutdated:
		return nil, fmt.Errorf("%w: step %d is already outdated", ErrCannotMarkOutdated, stepID)
	case StepInProgress:
		if err := s.writeRelease(tx, step, StepOutdated, p); err != nil {
			return nil, err
		}
	case StepPending:
		result := step.Result
		if p.Result != nil {
			result = p.Result
		}
		res, err := tx.Exec(
			`UPDATE plan_steps SET status = ?, result = ?, metadata = ?
			 WHERE id = ? AND status = ?`,
			StepOutdated, result, marshalMetadata(mergeMetadata(step.Metadata, p.Metadata)),
			stepID, StepPending,
		)
		if err != nil {
			return nil, fmt.Errorf("marking step outdated: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("%w: step %d changed concurrently", ErrInvalidTransition, stepID)
		}
	default:
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, step.Status, StepOutdated)
	}

	outdated, err := getStepTx(tx, stepID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return outdated, nil
}

// ─── Defer / undefer ─────────────────────────────────────────────────────────

// DeferStep parks a pending step. Deferred steps are skipped by
// ClaimNext regardless of their position.
func (s *Scheduler) DeferStep(stepID int64) (*Step, error) {
	return s.swapStepStatus(stepID, StepPending, StepDeferred, ErrCanOnlyDeferPending)
}

// UndeferStep returns a deferred step to pending with no other field
// changed.
func (s *Scheduler) UndeferStep(stepID int64) (*Step, error) {
	return s.swapStepStatus(stepID, StepDeferred, StepPending, ErrNotDeferred)
}

// swapStepStatus performs a single guarded status swap, surfacing
// mismatch as the given condition error.
func (s *Scheduler) swapStepStatus(stepID int64, from, to StepStatus, mismatch error) (*Step, error) {
	res, err := s.db.Exec(
		`UPDATE plan_steps SET status = ? WHERE id = ? AND status = ?`,
		to, stepID, from,
	)
	if err != nil {
		return nil, fmt.Errorf("updating step status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		step, err := s.store.GetStep(stepID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: step %d is %s", mismatch, stepID, step.Status)
	}
	return s.store.GetStep(stepID)
}

// ─── General update ──────────────────────────────────────────────────────────

// UpdateStep applies a partial update: result, shallow-merged metadata,
// and an optional status transition validated against the transition
// table. A direct write to in_progress is rejected — that transition
// belongs to ClaimNext. A transition out of in_progress updates the
// owning plan exactly as the dedicated release operations do.
func (s *Scheduler) UpdateStep(stepID int64, p UpdateStepParams) (*Step, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	step, err := getStepTx(tx, stepID)
	if err != nil {
		return nil, err
	}

	if p.Status != nil && *p.Status != step.Status {
		if err := ValidateDirectTransition(step.Status, *p.Status); err != nil {
			return nil, err
		}
		if step.Status == StepInProgress {
			if err := s.writeRelease(tx, step, *p.Status, ReleaseParams{Result: p.Result, Metadata: p.Metadata}); err != nil {
				return nil, err
			}
		} else {
			result := step.Result
			if p.Result != nil {
				result = p.Result
			}
			res, err := tx.Exec(
				`UPDATE plan_steps SET status = ?, result = ?, metadata = ?
				 WHERE id = ? AND status = ?`,
				*p.Status, result, marshalMetadata(mergeMetadata(step.Metadata, p.Metadata)),
				stepID, step.Status,
			)
			if err != nil {
				return nil, fmt.Errorf("updating step: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return nil, fmt.Errorf("%w: step %d changed concurrently", ErrInvalidTransition, stepID)
			}
		}
	} else {
		result := step.Result
		if p.Result != nil {
			result = p.Result
		}
		if _, err := tx.Exec(
			`UPDATE plan_steps SET result = ?, metadata = ? WHERE id = ?`,
			result, marshalMetadata(mergeMetadata(step.Metadata, p.Metadata)), stepID,
		); err != nil {
			return nil, fmt.Errorf("updating step: %w", err)
		}
	}

	updated, err := getStepTx(tx, stepID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return updated, nil
}

// ─── Pause / resume ──────────────────────────────────────────────────────────

// PausePlan freezes scheduling for a plan. An in-progress step keeps
// its status; it can still be completed, failed, or marked outdated
// while the plan is paused.
func (s *Scheduler) PausePlan(planID string) (*Plan, error) {
	return s.swapPlanStatus(planID, PlanPaused, ValidatePause)
}

// ResumePlan returns a paused plan to idle.
func (s *Scheduler) ResumePlan(planID string) (*Plan, error) {
	return s.swapPlanStatus(planID, PlanIdle, ValidateResume)
}

func (s *Scheduler) swapPlanStatus(planID string, to PlanStatus, validate func(PlanStatus) error) (*Plan, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status PlanStatus
	if err := tx.QueryRow(`SELECT status FROM plans WHERE id = ?`, planID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
		}
		return nil, fmt.Errorf("reading plan status: %w", err)
	}
	if err := validate(status); err != nil {
		return nil, err
	}

	res, err := tx.Exec(
		`UPDATE plans SET status = ? WHERE id = ? AND status = ?`,
		to, planID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("updating plan status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: plan %s changed concurrently", ErrValidation, planID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return s.store.GetPlan(planID)
}
