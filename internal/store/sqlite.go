package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voicescribe/internal/model"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements MeetingStore on a local SQLite database with an
// FTS5 index over title and transcript.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	fts bool
}

// DefaultDBPath is where the meeting database lives unless configured.
const DefaultDBPath = "./data/meetings.db"

// NewSQLiteStore opens (and if needed creates) the meeting database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		audio_path TEXT NOT NULL,
		status TEXT NOT NULL,
		transcript TEXT,
		error_message TEXT,
		api_cost_cents INTEGER,
		duration_seconds REAL,
		speaker_count INTEGER,
		segments_json TEXT,
		provider TEXT,
		model_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_meetings_status ON meetings(status);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// FTS5 needs the sqlite_fts5 build tag; fall back to LIKE search when the
	// extension is unavailable so the store still works.
	ftsSchema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS meetings_fts USING fts5(
		title, transcript, content='meetings', content_rowid='rowid'
	);
	CREATE TRIGGER IF NOT EXISTS meetings_ai AFTER INSERT ON meetings BEGIN
		INSERT INTO meetings_fts(rowid, title, transcript)
		VALUES (new.rowid, new.title, COALESCE(new.transcript, ''));
	END;
	CREATE TRIGGER IF NOT EXISTS meetings_ad AFTER DELETE ON meetings BEGIN
		INSERT INTO meetings_fts(meetings_fts, rowid, title, transcript)
		VALUES ('delete', old.rowid, old.title, COALESCE(old.transcript, ''));
	END;
	CREATE TRIGGER IF NOT EXISTS meetings_au AFTER UPDATE ON meetings BEGIN
		INSERT INTO meetings_fts(meetings_fts, rowid, title, transcript)
		VALUES ('delete', old.rowid, old.title, COALESCE(old.transcript, ''));
		INSERT INTO meetings_fts(rowid, title, transcript)
		VALUES (new.rowid, new.title, COALESCE(new.transcript, ''));
	END;
	`
	if _, err := s.db.Exec(ftsSchema); err != nil {
		log.Printf("[Store] FTS5 unavailable, falling back to LIKE search: %v", err)
		s.fts = false
		return nil
	}
	s.fts = true
	return nil
}

const meetingColumns = `id, title, audio_path, status, transcript, error_message,
	api_cost_cents, duration_seconds, speaker_count, segments_json, provider, model_id,
	created_at, updated_at`

// Create inserts a new meeting record.
func (s *SQLiteStore) Create(ctx context.Context, m *model.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (`+meetingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.Title, m.AudioPath, string(m.Status), m.Transcript, m.ErrorMessage,
		m.APICostCents, m.DurationSeconds, m.SpeakerCount, m.SegmentsJSON, m.Provider, m.ModelID,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meeting: %w", err)
	}
	return nil
}

// Get fetches a meeting by id.
func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (*model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id.String())
	return scanMeeting(row)
}

// Update rewrites a meeting row in full.
func (s *SQLiteStore) Update(ctx context.Context, m *model.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE meetings SET title = ?, audio_path = ?, status = ?, transcript = ?,
			error_message = ?, api_cost_cents = ?, duration_seconds = ?, speaker_count = ?,
			segments_json = ?, provider = ?, model_id = ?, updated_at = ?
		WHERE id = ?`,
		m.Title, m.AudioPath, string(m.Status), m.Transcript,
		m.ErrorMessage, m.APICostCents, m.DurationSeconds, m.SpeakerCount,
		m.SegmentsJSON, m.Provider, m.ModelID, m.UpdatedAt,
		m.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns meetings newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()
	return scanMeetings(rows)
}

// ListByStatus returns meetings in the given status, oldest first, so a bulk
// retry processes them in a stable, deterministic order.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status model.Status) ([]model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+meetingColumns+` FROM meetings WHERE status = ? ORDER BY created_at ASC`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings by status: %w", err)
	}
	defer rows.Close()
	return scanMeetings(rows)
}

// Search runs full-text search over title and transcript.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]model.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 20
	}

	var (
		rows *sql.Rows
		err  error
	)
	if s.fts {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+qualifiedMeetingColumns("m")+`
			FROM meetings m JOIN meetings_fts f ON m.rowid = f.rowid
			WHERE meetings_fts MATCH ?
			ORDER BY rank LIMIT ?`, query, limit)
	} else {
		like := "%" + query + "%"
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+meetingColumns+` FROM meetings
			WHERE title LIKE ? OR transcript LIKE ?
			ORDER BY created_at DESC LIMIT ?`, like, like, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()
	return scanMeetings(rows)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func qualifiedMeetingColumns(alias string) string {
	return alias + `.id, ` + alias + `.title, ` + alias + `.audio_path, ` + alias + `.status, ` +
		alias + `.transcript, ` + alias + `.error_message, ` + alias + `.api_cost_cents, ` +
		alias + `.duration_seconds, ` + alias + `.speaker_count, ` + alias + `.segments_json, ` +
		alias + `.provider, ` + alias + `.model_id, ` + alias + `.created_at, ` + alias + `.updated_at`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*model.Meeting, error) {
	var (
		m      model.Meeting
		idStr  string
		status string
	)
	err := row.Scan(&idStr, &m.Title, &m.AudioPath, &status, &m.Transcript, &m.ErrorMessage,
		&m.APICostCents, &m.DurationSeconds, &m.SpeakerCount, &m.SegmentsJSON, &m.Provider, &m.ModelID,
		&m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan meeting: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid meeting id %q: %w", idStr, err)
	}
	m.ID = id
	m.Status = model.Status(status)
	return &m, nil
}

func scanMeetings(rows *sql.Rows) ([]model.Meeting, error) {
	var meetings []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, *m)
	}
	return meetings, rows.Err()
}
