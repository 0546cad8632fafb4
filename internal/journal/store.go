package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Action names a coordinator operation.
type Action string

const (
	ActionCommitAdvance Action = "commit-next"
	ActionCommitFinish  Action = "commit-end"
	ActionAdd           Action = "add"
	ActionRemove        Action = "remove"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Entry is one coordinator action and how it ended.
type Entry struct {
	ID            int64
	RecordedAt    time.Time
	Action        Action
	SourceURI     string
	BoundingBox   string
	LabelerName   string
	EmbeddingID   string
	IncomingDirty bool
	MatchedDirty  bool
	Outcome       string
	Error         string
}

// Store persists journal entries in SQLite.
type Store struct {
	db *sql.DB
}

// Open initializes or connects to the journal database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")

		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("record migration %s: %w", version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// Record appends e. A zero RecordedAt is stamped with the current time.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (
			recorded_at, action, source_uri, bounding_box, labeler_name,
			embedding_id, incoming_dirty, matched_dirty, outcome, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
		string(e.Action),
		e.SourceURI,
		e.BoundingBox,
		e.LabelerName,
		e.EmbeddingID,
		boolToInt(e.IncomingDirty),
		boolToInt(e.MatchedDirty),
		e.Outcome,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	SourceURI string
	Action    Action
	Limit     int
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, recorded_at, action, source_uri, bounding_box, labeler_name,
		embedding_id, incoming_dirty, matched_dirty, outcome, error
		FROM journal_entries`

	var (
		clauses []string
		args    []any
	)
	if f.SourceURI != "" {
		clauses = append(clauses, "source_uri = ?")
		args = append(args, f.SourceURI)
	}
	if f.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(f.Action))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                       Entry
			recordedAt, action      string
			incomingDirty, matDirty int
		)
		if err := rows.Scan(
			&e.ID, &recordedAt, &action, &e.SourceURI, &e.BoundingBox, &e.LabelerName,
			&e.EmbeddingID, &incomingDirty, &matDirty, &e.Outcome, &e.Error,
		); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Action = Action(action)
		e.IncomingDirty = incomingDirty != 0
		e.MatchedDirty = matDirty != 0
		if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			e.RecordedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
