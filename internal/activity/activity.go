// Package activity builds read-only projections over the shared
// database: a merged recent-events feed and per-plan progress counts.
// It never mutates engine state.
package activity

import (
	"database/sql"
	"fmt"
)

// DefaultFeedLimit bounds the feed when the caller passes no limit;
// MaxFeedLimit caps what a caller may ask for.
const (
	DefaultFeedLimit = 30
	MaxFeedLimit     = 100
)

// Event is one feed entry. Kind is "plan", "step", "note", or
// "decision"; Status carries the row's current status where the kind
// has one.
type Event struct {
	Kind       string `json:"kind"`
	Project    string `json:"project"`
	Title      string `json:"title"`
	Status     string `json:"status,omitempty"`
	InsertedAt string `json:"inserted_at"`
}

// PlanProgress summarizes one plan's steps by status.
type PlanProgress struct {
	PlanID     string         `json:"plan_id"`
	Title      string         `json:"title"`
	PlanStatus string         `json:"plan_status"`
	Counts     map[string]int `json:"counts"`
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Ratio      float64        `json:"ratio"`
}

// Service answers feed and progress queries.
type Service struct {
	db *sql.DB
}

// NewService wraps an open database. The plan schema must already be
// migrated; the memory tables may be absent (a degraded server still
// serves plan events).
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Feed returns the newest events for a project across plans, steps,
// notes, and decisions. An empty project returns events from every
// project.
func (s *Service) Feed(project string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	query := `
		SELECT 'plan' AS kind, p.project, p.title, p.status, p.inserted_at
		FROM plans p
		WHERE (?1 = '' OR p.project = ?1)
		UNION ALL
		SELECT 'step', p.project, ps.description, ps.status, ps.inserted_at
		FROM plan_steps ps JOIN plans p ON p.id = ps.plan_id
		WHERE (?1 = '' OR p.project = ?1)
	`
	if s.hasMemoryTables() {
		query += `
		UNION ALL
		SELECT 'note', project, title, '', inserted_at
		FROM notes
		WHERE (?1 = '' OR project = ?1)
		UNION ALL
		SELECT 'decision', project, title, '', inserted_at
		FROM decisions
		WHERE (?1 = '' OR project = ?1)
		`
	}
	query += ` ORDER BY inserted_at DESC LIMIT ?2`

	rows, err := s.db.Query(query, project, limit)
	if err != nil {
		return nil, fmt.Errorf("activity: feed query: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Kind, &e.Project, &e.Title, &e.Status, &e.InsertedAt); err != nil {
			return nil, fmt.Errorf("activity: scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Progress returns per-plan step counts by status and a completion
// ratio, newest plans first. Plans with no steps report a ratio of 0.
func (s *Service) Progress(project string) ([]PlanProgress, error) {
	rows, err := s.db.Query(
		`SELECT p.id, p.title, p.status, COALESCE(ps.status, ''), COUNT(ps.id)
		 FROM plans p
		 LEFT JOIN plan_steps ps ON ps.plan_id = p.id
		 WHERE (?1 = '' OR p.project = ?1)
		 GROUP BY p.id, ps.status
		 ORDER BY p.inserted_at DESC, p.id`,
		project,
	)
	if err != nil {
		return nil, fmt.Errorf("activity: progress query: %w", err)
	}
	defer rows.Close()

	var result []PlanProgress
	index := map[string]int{}
	for rows.Next() {
		var planID, title, planStatus, stepStatus string
		var count int
		if err := rows.Scan(&planID, &title, &planStatus, &stepStatus, &count); err != nil {
			return nil, fmt.Errorf("activity: scanning progress: %w", err)
		}

		i, ok := index[planID]
		if !ok {
			i = len(result)
			index[planID] = i
			result = append(result, PlanProgress{
				PlanID:     planID,
				Title:      title,
				PlanStatus: planStatus,
				Counts:     map[string]int{},
			})
		}
		if stepStatus == "" {
			continue // plan with no steps
		}
		result[i].Counts[stepStatus] = count
		result[i].Total += count
		if stepStatus == "completed" {
			result[i].Completed += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if result[i].Total > 0 {
			result[i].Ratio = float64(result[i].Completed) / float64(result[i].Total)
		}
	}
	return result, nil
}

func (s *Service) hasMemoryTables() bool {
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='notes'",
	).Scan(&name)
	return err == nil
}
