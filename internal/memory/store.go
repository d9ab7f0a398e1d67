// Package memory stores the simple project-scoped records agents
// persist alongside plans: free-text notes, recorded decisions, and
// named saved-context documents.
//
// These are plain timestamped rows — no state machine, no concurrency
// hazard. Notes are searchable through SQLite FTS5 with a recency
// fallback for empty queries; semantic search is an external capability
// this package never depends on.
package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Note is a free-text observation saved by an agent or user.
type Note struct {
	ID         int64    `json:"id"`
	Project    string   `json:"project"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	InsertedAt string   `json:"inserted_at"`
}

// Decision records a choice made during development, with rationale.
type Decision struct {
	ID         int64  `json:"id"`
	Project    string `json:"project"`
	Title      string `json:"title"`
	Decision   string `json:"decision"`
	Rationale  string `json:"rationale,omitempty"`
	InsertedAt string `json:"inserted_at"`
}

// SavedContext is a named document a session can stash and later
// restore. One slug maps to one document per project; saving to an
// existing slug replaces its content.
type SavedContext struct {
	ID         int64  `json:"id"`
	Project    string `json:"project"`
	Slug       string `json:"slug"`
	Content    string `json:"content"`
	InsertedAt string `json:"inserted_at"`
	UpdatedAt  string `json:"updated_at"`
}

// NoteSearchResult embeds a Note with its FTS5 rank. Rank is 0 for
// recency-fallback results.
type NoteSearchResult struct {
	Note
	Rank float64 `json:"rank"`
}

// AddNoteParams holds the input for saving a note.
type AddNoteParams struct {
	Project string   `json:"project"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// AddDecisionParams holds the input for recording a decision.
type AddDecisionParams struct {
	Project   string `json:"project"`
	Title     string `json:"title"`
	Decision  string `json:"decision"`
	Rationale string `json:"rationale,omitempty"`
}

// ─── Errors ──────────────────────────────────────────────────────────────────

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrValidation means required fields were missing.
	ErrValidation = errors.New("validation failed")
)

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds memory store limits.
type Config struct {
	MaxContentLength int
	MaxSearchResults int
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxContentLength: 4000,
		MaxSearchResults: 20,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store persists notes, decisions, and saved contexts in the shared
// SQLite database.
type Store struct {
	db  *sql.DB
	cfg Config
}

// NewStore wraps an open database and runs the memory schema migration.
func NewStore(db *sql.DB, cfg Config) (*Store, error) {
	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("memory: migration: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS notes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			project     TEXT NOT NULL,
			title       TEXT NOT NULL,
			content     TEXT NOT NULL,
			tags        TEXT NOT NULL DEFAULT '[]',
			inserted_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_notes_project  ON notes(project);
		CREATE INDEX IF NOT EXISTS idx_notes_inserted ON notes(inserted_at DESC);

		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			title,
			content,
			project,
			content='notes',
			content_rowid='id'
		);

		CREATE TABLE IF NOT EXISTS decisions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			project     TEXT NOT NULL,
			title       TEXT NOT NULL,
			decision    TEXT NOT NULL,
			rationale   TEXT NOT NULL DEFAULT '',
			inserted_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_decisions_project  ON decisions(project);
		CREATE INDEX IF NOT EXISTS idx_decisions_inserted ON decisions(inserted_at DESC);

		CREATE TABLE IF NOT EXISTS saved_contexts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			project     TEXT NOT NULL,
			slug        TEXT NOT NULL,
			content     TEXT NOT NULL,
			inserted_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at  TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE (project, slug)
		);

		CREATE INDEX IF NOT EXISTS idx_contexts_project ON saved_contexts(project, updated_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS triggers, created once (idempotent check against sqlite_master).
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='trigger' AND name='notes_fts_insert'",
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		triggers := `
			CREATE TRIGGER notes_fts_insert AFTER INSERT ON notes BEGIN
				INSERT INTO notes_fts(rowid, title, content, project)
				VALUES (new.id, new.title, new.content, new.project);
			END;

			CREATE TRIGGER notes_fts_delete AFTER DELETE ON notes BEGIN
				INSERT INTO notes_fts(notes_fts, rowid, title, content, project)
				VALUES ('delete', old.id, old.title, old.content, old.project);
			END;

			CREATE TRIGGER notes_fts_update AFTER UPDATE ON notes BEGIN
				INSERT INTO notes_fts(notes_fts, rowid, title, content, project)
				VALUES ('delete', old.id, old.title, old.content, old.project);
				INSERT INTO notes_fts(rowid, title, content, project)
				VALUES (new.id, new.title, new.content, new.project);
			END;
		`
		if _, err := s.db.Exec(triggers); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	return nil
}

// ─── Notes ───────────────────────────────────────────────────────────────────

// AddNote saves a note, capping content at the configured length.
func (s *Store) AddNote(p AddNoteParams) (*Note, error) {
	if strings.TrimSpace(p.Project) == "" || strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("%w: project and title are required", ErrValidation)
	}

	content := p.Content
	if len(content) > s.cfg.MaxContentLength {
		content = content[:s.cfg.MaxContentLength] + "... [truncated]"
	}

	res, err := s.db.Exec(
		`INSERT INTO notes (project, title, content, tags) VALUES (?, ?, ?, ?)`,
		p.Project, p.Title, content, marshalTags(p.Tags),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting note: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetNote(id)
}

// GetNote retrieves a note by ID.
func (s *Store) GetNote(id int64) (*Note, error) {
	row := s.db.QueryRow(
		`SELECT id, project, title, content, tags, inserted_at FROM notes WHERE id = ?`, id,
	)
	var n Note
	var tags string
	if err := row.Scan(&n.ID, &n.Project, &n.Title, &n.Content, &tags, &n.InsertedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: note %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("scanning note: %w", err)
	}
	n.Tags = unmarshalTags(tags)
	return &n, nil
}

// SearchNotes runs an FTS5 query over note titles and contents within a
// project. An empty or whitespace-only query falls back to recency
// ordering.
func (s *Store) SearchNotes(project, query string, limit int) ([]NoteSearchResult, error) {
	if limit <= 0 || limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return s.recentNotes(project, limit)
	}

	rows, err := s.db.Query(
		`SELECT n.id, n.project, n.title, n.content, n.tags, n.inserted_at, fts.rank
		 FROM notes_fts fts
		 JOIN notes n ON n.id = fts.rowid
		 WHERE notes_fts MATCH ? AND n.project = ?
		 ORDER BY fts.rank LIMIT ?`,
		ftsQuery, project, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	defer rows.Close()

	return scanNoteResults(rows)
}

// recentNotes is the no-query fallback: newest notes first.
func (s *Store) recentNotes(project string, limit int) ([]NoteSearchResult, error) {
	rows, err := s.db.Query(
		`SELECT id, project, title, content, tags, inserted_at, 0 AS rank
		 FROM notes
		 WHERE project = ?
		 ORDER BY inserted_at DESC, id DESC LIMIT ?`,
		project, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent notes: %w", err)
	}
	defer rows.Close()

	return scanNoteResults(rows)
}

func scanNoteResults(rows *sql.Rows) ([]NoteSearchResult, error) {
	var results []NoteSearchResult
	for rows.Next() {
		var r NoteSearchResult
		var tags string
		if err := rows.Scan(&r.ID, &r.Project, &r.Title, &r.Content, &tags, &r.InsertedAt, &r.Rank); err != nil {
			return nil, fmt.Errorf("scanning note result: %w", err)
		}
		r.Tags = unmarshalTags(tags)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ─── Decisions ───────────────────────────────────────────────────────────────

// AddDecision records a decision.
func (s *Store) AddDecision(p AddDecisionParams) (*Decision, error) {
	if strings.TrimSpace(p.Project) == "" || strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Decision) == "" {
		return nil, fmt.Errorf("%w: project, title, and decision are required", ErrValidation)
	}

	res, err := s.db.Exec(
		`INSERT INTO decisions (project, title, decision, rationale) VALUES (?, ?, ?, ?)`,
		p.Project, p.Title, p.Decision, p.Rationale,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting decision: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetDecision(id)
}

// GetDecision retrieves a decision by ID.
func (s *Store) GetDecision(id int64) (*Decision, error) {
	row := s.db.QueryRow(
		`SELECT id, project, title, decision, rationale, inserted_at FROM decisions WHERE id = ?`, id,
	)
	var d Decision
	if err := row.Scan(&d.ID, &d.Project, &d.Title, &d.Decision, &d.Rationale, &d.InsertedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: decision %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("scanning decision: %w", err)
	}
	return &d, nil
}

// ListDecisions returns a project's decisions, newest first.
func (s *Store) ListDecisions(project string, limit int) ([]Decision, error) {
	if limit <= 0 || limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	rows, err := s.db.Query(
		`SELECT id, project, title, decision, rationale, inserted_at
		 FROM decisions
		 WHERE project = ?
		 ORDER BY inserted_at DESC, id DESC LIMIT ?`,
		project, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing decisions: %w", err)
	}
	defer rows.Close()

	var result []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.Project, &d.Title, &d.Decision, &d.Rationale, &d.InsertedAt); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// ─── Saved contexts ──────────────────────────────────────────────────────────

// SaveContext upserts a named context document. Saving to an existing
// (project, slug) pair replaces its content and bumps updated_at.
func (s *Store) SaveContext(project, slug, content string) (*SavedContext, error) {
	if strings.TrimSpace(project) == "" || strings.TrimSpace(slug) == "" {
		return nil, fmt.Errorf("%w: project and slug are required", ErrValidation)
	}
	if len(content) > s.cfg.MaxContentLength {
		content = content[:s.cfg.MaxContentLength] + "... [truncated]"
	}

	_, err := s.db.Exec(
		`INSERT INTO saved_contexts (project, slug, content)
		 VALUES (?, ?, ?)
		 ON CONFLICT (project, slug) DO UPDATE SET
		   content = excluded.content,
		   updated_at = datetime('now')`,
		project, slug, content,
	)
	if err != nil {
		return nil, fmt.Errorf("saving context: %w", err)
	}
	return s.GetContext(project, slug)
}

// GetContext retrieves a saved context by slug.
func (s *Store) GetContext(project, slug string) (*SavedContext, error) {
	row := s.db.QueryRow(
		`SELECT id, project, slug, content, inserted_at, updated_at
		 FROM saved_contexts WHERE project = ? AND slug = ?`,
		project, slug,
	)
	var c SavedContext
	if err := row.Scan(&c.ID, &c.Project, &c.Slug, &c.Content, &c.InsertedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: context %q", ErrNotFound, slug)
		}
		return nil, fmt.Errorf("scanning context: %w", err)
	}
	return &c, nil
}

// ListContexts returns a project's saved contexts, most recently
// updated first, without content (slugs and timestamps only).
func (s *Store) ListContexts(project string) ([]SavedContext, error) {
	rows, err := s.db.Query(
		`SELECT id, project, slug, '', inserted_at, updated_at
		 FROM saved_contexts
		 WHERE project = ?
		 ORDER BY updated_at DESC, id DESC`,
		project,
	)
	if err != nil {
		return nil, fmt.Errorf("listing contexts: %w", err)
	}
	defer rows.Close()

	var result []SavedContext
	for rows.Next() {
		var c SavedContext
		if err := rows.Scan(&c.ID, &c.Project, &c.Slug, &c.Content, &c.InsertedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning context: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	data, _ := json.Marshal(tags)
	return string(data)
}

func unmarshalTags(data string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(data), &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "fix auth bug" → `"fix" "auth" "bug"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}
