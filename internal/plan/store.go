package plan

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultListLimit caps ListPlans when the caller gives no limit.
const DefaultListLimit = 20

// Store provides persistence for plans and steps. Status fields are
// mutated only by the Scheduler; the Store handles creation, content
// edits, ordering, and reads.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database and runs the plan schema migration.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("plan: migration: %w", err)
	}
	return s, nil
}

// DB exposes the underlying handle for the Scheduler, which shares the
// store's database so claims and releases transact over the same rows.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS plans (
			id          TEXT PRIMARY KEY,
			project     TEXT NOT NULL,
			title       TEXT NOT NULL,
			body        TEXT NOT NULL DEFAULT '',
			tags        TEXT NOT NULL DEFAULT '[]',
			files       TEXT NOT NULL DEFAULT '[]',
			status      TEXT NOT NULL DEFAULT 'idle',
			inserted_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_plans_project  ON plans(project);
		CREATE INDEX IF NOT EXISTS idx_plans_title    ON plans(project, title);
		CREATE INDEX IF NOT EXISTS idx_plans_inserted ON plans(inserted_at DESC);

		CREATE TABLE IF NOT EXISTS plan_steps (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			plan_id     TEXT NOT NULL,
			step_number REAL NOT NULL,
			description TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'pending',
			created_by  TEXT NOT NULL DEFAULT 'agent',
			result      TEXT,
			metadata    TEXT NOT NULL DEFAULT '{}',
			inserted_at TEXT NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE,
			UNIQUE (plan_id, step_number)
		);

		CREATE INDEX IF NOT EXISTS idx_steps_plan   ON plan_steps(plan_id, step_number);
		CREATE INDEX IF NOT EXISTS idx_steps_status ON plan_steps(plan_id, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Plans ───────────────────────────────────────────────────────────────────

// CreatePlan persists a new plan with status idle.
func (s *Store) CreatePlan(p CreatePlanParams) (*Plan, error) {
	if strings.TrimSpace(p.Project) == "" {
		return nil, fmt.Errorf("%w: project is required", ErrValidation)
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}

	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO plans (id, project, title, body, tags, files, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.Project, p.Title, p.Body,
		marshalStrings(p.Tags), marshalStrings(p.Files), PlanIdle,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting plan: %w", err)
	}
	return s.GetPlan(id)
}

// GetPlan retrieves a plan by ID.
func (s *Store) GetPlan(id string) (*Plan, error) {
	return scanPlan(s.db.QueryRow(
		`SELECT id, project, title, body, tags, files, status, inserted_at
		 FROM plans WHERE id = ?`, id,
	))
}

// GetPlanByTitle retrieves the newest plan with an exact title within a
// project.
func (s *Store) GetPlanByTitle(project, title string) (*Plan, error) {
	return scanPlan(s.db.QueryRow(
		`SELECT id, project, title, body, tags, files, status, inserted_at
		 FROM plans
		 WHERE project = ? AND title = ?
		 ORDER BY inserted_at DESC LIMIT 1`,
		project, title,
	))
}

// ListPlans returns plans for a project, newest first, with an optional
// exact title filter.
func (s *Store) ListPlans(p ListPlansParams) ([]Plan, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}

	query := `
		SELECT id, project, title, body, tags, files, status, inserted_at
		FROM plans
		WHERE project = ?
	`
	args := []any{p.Project}

	if p.Title != "" {
		query += " AND title = ?"
		args = append(args, p.Title)
	}

	query += " ORDER BY inserted_at DESC, id DESC LIMIT ?"
	args = append(args, p.Limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var result []Plan
	for rows.Next() {
		plan, err := scanPlanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *plan)
	}
	return result, rows.Err()
}

// ListTitles returns the distinct plan titles within a project, sorted.
func (s *Store) ListTitles(project string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT title FROM plans WHERE project = ? ORDER BY title ASC`,
		project,
	)
	if err != nil {
		return nil, fmt.Errorf("listing titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// UpdatePlanBody replaces a plan's body text. Content edits do not go
// through the Scheduler — they never touch status.
func (s *Store) UpdatePlanBody(id, body string) (*Plan, error) {
	res, err := s.db.Exec(`UPDATE plans SET body = ? WHERE id = ?`, body, id)
	if err != nil {
		return nil, fmt.Errorf("updating plan body: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return s.GetPlan(id)
}

// DeletePlan removes a plan and, via the foreign key cascade, all of
// its steps.
func (s *Store) DeletePlan(id string) error {
	res, err := s.db.Exec(`DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return nil
}

// ─── Steps ───────────────────────────────────────────────────────────────────

// AddStep appends or inserts a step. The step number is resolved inside
// a transaction so concurrent inserts compute against a consistent
// view; the UNIQUE(plan_id, step_number) index is the backstop for any
// collision, surfaced as ErrDuplicateStepNumber.
func (s *Store) AddStep(p AddStepParams) (*Step, error) {
	if strings.TrimSpace(p.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	createdBy := p.CreatedBy
	if createdBy == "" {
		createdBy = CreatedByAgent
	}
	if createdBy != CreatedByUser && createdBy != CreatedByAgent {
		return nil, fmt.Errorf("%w: created_by must be user or agent", ErrValidation)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRow(`SELECT 1 FROM plans WHERE id = ?`, p.PlanID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, p.PlanID)
		}
		return nil, fmt.Errorf("checking plan: %w", err)
	}

	number, err := resolveStepNumber(tx, p)
	if err != nil {
		return nil, err
	}

	res, err := tx.Exec(
		`INSERT INTO plan_steps (plan_id, step_number, description, status, created_by, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.PlanID, number, p.Description, StepPending, createdBy, marshalMetadata(p.Metadata),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s at %g", ErrDuplicateStepNumber, p.PlanID, number)
		}
		return nil, fmt.Errorf("inserting step: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("step insert id: %w", err)
	}

	step, err := getStepTx(tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return step, nil
}

// resolveStepNumber applies the ordering rules:
//   - explicit number wins over after_step
//   - after_step X: midpoint to the next greater number, or X + 1.0 if
//     X is the last step
//   - neither: max + 1.0, or 1.0 for an empty plan
func resolveStepNumber(tx *sql.Tx, p AddStepParams) (float64, error) {
	if p.StepNumber != nil {
		return *p.StepNumber, nil
	}

	if p.AfterStep != nil {
		after := *p.AfterStep
		var next sql.NullFloat64
		err := tx.QueryRow(
			`SELECT MIN(step_number) FROM plan_steps WHERE plan_id = ? AND step_number > ?`,
			p.PlanID, after,
		).Scan(&next)
		if err != nil {
			return 0, fmt.Errorf("resolving after_step: %w", err)
		}
		if !next.Valid {
			return after + 1.0, nil
		}
		return (after + next.Float64) / 2, nil
	}

	var max sql.NullFloat64
	err := tx.QueryRow(
		`SELECT MAX(step_number) FROM plan_steps WHERE plan_id = ?`, p.PlanID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("resolving append number: %w", err)
	}
	if !max.Valid {
		return 1.0, nil
	}
	return max.Float64 + 1.0, nil
}

// GetStep retrieves a step by ID.
func (s *Store) GetStep(id int64) (*Step, error) {
	return scanStep(s.db.QueryRow(stepSelect+` WHERE id = ?`, id))
}

// GetStepByNumber retrieves a step by its (plan, step_number) pair.
func (s *Store) GetStepByNumber(planID string, number float64) (*Step, error) {
	return scanStep(s.db.QueryRow(
		stepSelect+` WHERE plan_id = ? AND step_number = ?`, planID, number,
	))
}

// ListSteps returns a plan's steps in execution order (ascending
// step_number), optionally filtered by status.
func (s *Store) ListSteps(planID string, status StepStatus) ([]Step, error) {
	query := stepSelect + ` WHERE plan_id = ?`
	args := []any{planID}

	if status != "" {
		if !validStepStatuses[status] {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
		query += ` AND status = ?`
		args = append(args, status)
	}

	query += ` ORDER BY step_number ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing steps: %w", err)
	}
	defer rows.Close()

	var result []Step
	for rows.Next() {
		step, err := scanStepRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *step)
	}
	return result, rows.Err()
}

// ─── Row scanning ────────────────────────────────────────────────────────────

const stepSelect = `
	SELECT id, plan_id, step_number, description, status, created_by, result, metadata, inserted_at
	FROM plan_steps`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlanFields(row rowScanner) (*Plan, error) {
	var p Plan
	var tags, files string
	if err := row.Scan(&p.ID, &p.Project, &p.Title, &p.Body, &tags, &files, &p.Status, &p.InsertedAt); err != nil {
		return nil, err
	}
	p.Tags = unmarshalStrings(tags)
	p.Files = unmarshalStrings(files)
	return &p, nil
}

func scanPlan(row *sql.Row) (*Plan, error) {
	p, err := scanPlanFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning plan: %w", err)
	}
	return p, nil
}

func scanPlanRow(rows *sql.Rows) (*Plan, error) {
	p, err := scanPlanFields(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning plan: %w", err)
	}
	return p, nil
}

func scanStepFields(row rowScanner) (*Step, error) {
	var st Step
	var metadata string
	if err := row.Scan(&st.ID, &st.PlanID, &st.StepNumber, &st.Description, &st.Status, &st.CreatedBy, &st.Result, &metadata, &st.InsertedAt); err != nil {
		return nil, err
	}
	st.Metadata = unmarshalMetadata(metadata)
	return &st, nil
}

func scanStep(row *sql.Row) (*Step, error) {
	st, err := scanStepFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStepNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning step: %w", err)
	}
	return st, nil
}

func scanStepRow(rows *sql.Rows) (*Step, error) {
	st, err := scanStepFields(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning step: %w", err)
	}
	return st, nil
}

func getStepTx(tx *sql.Tx, id int64) (*Step, error) {
	st, err := scanStepFields(tx.QueryRow(stepSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStepNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning step: %w", err)
	}
	return st, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func marshalStrings(list []string) string {
	if list == nil {
		list = []string{}
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func unmarshalStrings(data string) []string {
	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil || list == nil {
		return []string{}
	}
	return list
}

func marshalMetadata(m map[string]any) string {
	if m == nil {
		m = map[string]any{}
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func unmarshalMetadata(data string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// mergeMetadata shallow-merges updates into existing. Existing keys not
// present in updates survive; keys in updates overwrite.
func mergeMetadata(existing map[string]any, updates map[string]any) map[string]any {
	if len(updates) == 0 {
		return existing
	}
	merged := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint
// violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
