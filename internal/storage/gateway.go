// Package storage persists note sessions to an embedded SQLite store under
// the user's profile directory and schedules debounced background saves.
//
// Persistence is a full replace: every save writes the complete collection in
// one transaction. The in-memory store stays authoritative; a failed write
// never mutates session state, it only flips the save indicator.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jotdown/jotdown/db"
	"github.com/jotdown/jotdown/internal/attachment"
	"github.com/jotdown/jotdown/internal/markup"
	"github.com/jotdown/jotdown/internal/note"
)

const (
	dbFileName   = "jotdown.db"
	lockFileName = "jotdown.lock"

	// metaInitialized marks a store that has completed at least one save.
	// Its absence is how a first run is told apart from a store whose
	// sessions were all deleted.
	metaInitialized   = "initialized"
	metaActiveSession = "active_session"

	// MetaWeeklyLastRun records the calendar date of the last scheduled
	// weekly aggregation, keeping the trigger idempotent per day.
	MetaWeeklyLastRun = "weekly_last_run"
)

// ErrLocked means another process holds the profile directory.
var ErrLocked = errors.New("profile directory is locked by another instance")

// Gateway owns the durable store for one profile directory.
//
// Gateway is safe for concurrent use; the underlying pool is capped at one
// connection because SQLite allows a single writer.
type Gateway struct {
	conn     *sql.DB
	lock     *flock.Flock
	registry *attachment.Registry
	logger   *slog.Logger
}

// Open prepares the profile directory: takes the single-instance lock, opens
// the database with WAL mode and runs pending migrations.
//
// A second Open on the same profile fails with ErrLocked.
func Open(profileDir string, registry *attachment.Registry, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(profileDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	lock := flock.New(filepath.Join(profileDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire profile lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	dbPath := filepath.Join(profileDir, dbFileName)
	if err := db.Migrate(dbPath); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// WAL for concurrent reads, busy timeout so the migration runner's
	// lingering WAL handles never surface as SQLITE_BUSY.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1) // SQLite only supports one writer
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	logger.Debug("opened session store", "path", dbPath)
	return &Gateway{
		conn:     conn,
		lock:     lock,
		registry: registry,
		logger:   logger,
	}, nil
}

// Close releases the database and the profile lock.
func (g *Gateway) Close() error {
	var errs []error
	if err := g.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if err := g.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release profile lock: %w", err))
	}
	return errors.Join(errs...)
}

// LoadAll reads the persisted collection.
//
// A store that has never been saved returns (nil, uuid.Nil, nil) so the
// caller can tell a first run apart from a store whose notes were all
// deleted, which returns an empty non-nil slice.
//
// Loaded sessions are repaired on the way in: a persisted processing status
// collapses to idle, missing modes and zero timestamps get defaults, and
// every attachment is issued a fresh display handle.
func (g *Gateway) LoadAll(ctx context.Context) ([]*note.Session, uuid.UUID, error) {
	initialized, err := g.Meta(ctx, metaInitialized)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("failed to read store marker: %w", err)
	}
	if initialized == "" {
		g.logger.Debug("store not initialized, first run")
		return nil, uuid.Nil, nil
	}

	sessions, err := g.loadSessions(ctx)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if err := g.loadAttachments(ctx, sessions); err != nil {
		return nil, uuid.Nil, err
	}

	activeID := uuid.Nil
	if raw, err := g.Meta(ctx, metaActiveSession); err == nil && raw != "" {
		if id, parseErr := uuid.Parse(raw); parseErr == nil {
			activeID = id
		}
	}

	g.logger.Debug("loaded sessions", "count", len(sessions), "active", activeID)
	return sessions, activeID, nil
}

func (g *Gateway) loadSessions(ctx context.Context) ([]*note.Session, error) {
	rows, err := g.conn.QueryContext(ctx, `
		SELECT id, title, content, status, error, mode,
		       generated_text, generated_at, conversation, created_at
		FROM note_sessions
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*note.Session, 0)
	for rows.Next() {
		var (
			rawID            string
			sess             note.Session
			status, mode     string
			generatedText    sql.NullString
			generatedAtNanos sql.NullInt64
			conversationJSON string
			createdAtNanos   int64
		)
		if err := rows.Scan(&rawID, &sess.Title, &sess.Content, &status, &sess.Error,
			&mode, &generatedText, &generatedAtNanos, &conversationJSON, &createdAtNanos); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}

		id, err := uuid.Parse(rawID)
		if err != nil {
			g.logger.Warn("skipping session with malformed id", "id", rawID, "error", err)
			continue
		}
		sess.ID = id
		sess.Status = coerceStatus(note.Status(status))
		sess.Mode = note.Mode(mode)
		if sess.Mode == "" {
			sess.Mode = note.ModeStructured
		}
		sess.CreatedAt = time.Unix(0, createdAtNanos)
		if createdAtNanos == 0 {
			sess.CreatedAt = time.Now()
		}
		if generatedText.Valid {
			sess.Result = &note.Result{
				GeneratedText: generatedText.String,
				GeneratedAt:   time.Unix(0, generatedAtNanos.Int64),
			}
		}
		if conversationJSON != "" && conversationJSON != "[]" {
			if err := json.Unmarshal([]byte(conversationJSON), &sess.Conversation); err != nil {
				g.logger.Warn("dropping malformed conversation", "session_id", id, "error", err)
				sess.Conversation = nil
			}
		}

		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return sessions, nil
}

func (g *Gateway) loadAttachments(ctx context.Context, sessions []*note.Session) error {
	rows, err := g.conn.QueryContext(ctx, `
		SELECT id, session_id, filename, mime, kind, data, created_at
		FROM note_attachments
		ORDER BY session_id, position ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	bySession := make(map[uuid.UUID]*note.Session, len(sessions))
	for _, sess := range sessions {
		bySession[sess.ID] = sess
	}

	for rows.Next() {
		var (
			rawID, rawSessionID string
			ref                 attachment.Ref
			kind                string
			createdAtNanos      int64
		)
		if err := rows.Scan(&rawID, &rawSessionID, &ref.Filename, &ref.MIME,
			&kind, &ref.Data, &createdAtNanos); err != nil {
			return fmt.Errorf("failed to scan attachment row: %w", err)
		}

		id, err := uuid.Parse(rawID)
		if err != nil {
			g.logger.Warn("skipping attachment with malformed id", "id", rawID, "error", err)
			continue
		}
		sessionID, err := uuid.Parse(rawSessionID)
		if err != nil {
			g.logger.Warn("skipping attachment with malformed session id", "id", rawID, "error", err)
			continue
		}
		sess, ok := bySession[sessionID]
		if !ok {
			g.logger.Warn("skipping orphaned attachment", "id", id, "session_id", sessionID)
			continue
		}

		ref.ID = id
		ref.Kind = attachment.Kind(kind)
		ref.CreatedAt = time.Unix(0, createdAtNanos)
		g.registry.Issue(&ref)
		sess.Attachments = append(sess.Attachments, &ref)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate attachment rows: %w", err)
	}
	return nil
}

// SaveAll atomically replaces the persisted collection with the given
// snapshot: both tables are cleared and rewritten in a single transaction
// together with the initialized marker and the active session id.
//
// Volatile state never reaches the disk: a processing status persists as
// idle, display handles have no column, and content is stripped of any
// highlight overlay.
//
// Reports whether the write succeeded. Failures are logged, never thrown
// past this boundary; the in-memory collection remains authoritative.
func (g *Gateway) SaveAll(ctx context.Context, sessions []*note.Session, activeID uuid.UUID) bool {
	if err := g.saveAll(ctx, sessions, activeID); err != nil {
		g.logger.Error("failed to save sessions", "count", len(sessions), "error", err)
		return false
	}
	g.logger.Debug("saved sessions", "count", len(sessions), "active", activeID)
	return true
}

func (g *Gateway) saveAll(ctx context.Context, sessions []*note.Session, activeID uuid.UUID) error {
	tx, err := g.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			g.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM note_attachments`); err != nil {
		return fmt.Errorf("failed to clear attachments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_sessions`); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	for i, sess := range sessions {
		var generatedText sql.NullString
		var generatedAt sql.NullInt64
		if sess.Result != nil {
			generatedText = sql.NullString{String: sess.Result.GeneratedText, Valid: true}
			generatedAt = sql.NullInt64{Int64: sess.Result.GeneratedAt.UnixNano(), Valid: true}
		}

		conversationJSON := []byte("[]")
		if len(sess.Conversation) > 0 {
			conversationJSON, err = json.Marshal(sess.Conversation)
			if err != nil {
				return fmt.Errorf("failed to marshal conversation for %s: %w", sess.ID, err)
			}
		}

		createdAt := int64(0)
		if !sess.CreatedAt.IsZero() {
			createdAt = sess.CreatedAt.UnixNano()
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO note_sessions
				(id, title, content, status, error, mode,
				 generated_text, generated_at, conversation, created_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sess.ID.String(),
			sess.Title,
			markup.StripHighlight(sess.Content),
			string(coerceStatus(sess.Status)),
			sess.Error,
			string(sess.Mode),
			generatedText,
			generatedAt,
			string(conversationJSON),
			createdAt,
			i,
		); err != nil {
			return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
		}

		for j, ref := range sess.Attachments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO note_attachments
					(id, session_id, filename, mime, kind, data, created_at, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
				ref.ID.String(),
				sess.ID.String(),
				ref.Filename,
				ref.MIME,
				string(ref.Kind),
				ref.Data,
				ref.CreatedAt.UnixNano(),
				j,
			); err != nil {
				return fmt.Errorf("failed to insert attachment %s: %w", ref.ID, err)
			}
		}
	}

	if err := setMetaTx(ctx, tx, metaInitialized, "1"); err != nil {
		return err
	}
	if err := setMetaTx(ctx, tx, metaActiveSession, activeID.String()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// coerceStatus collapses the transient processing state to idle. An
// in-flight generation is meaningless across a restart.
func coerceStatus(s note.Status) note.Status {
	switch s {
	case note.StatusProcessing, "":
		return note.StatusIdle
	default:
		return s
	}
}

// Meta reads a durable key-value entry. A missing key is ("", nil).
func (g *Gateway) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := g.conn.QueryRowContext(ctx,
		`SELECT value FROM store_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %q: %w", key, err)
	}
	return value, nil
}

// SetMeta writes a durable key-value entry.
func (g *Gateway) SetMeta(ctx context.Context, key, value string) error {
	if _, err := g.conn.ExecContext(ctx, `
		INSERT INTO store_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value); err != nil {
		return fmt.Errorf("failed to write meta %q: %w", key, err)
	}
	return nil
}

func setMetaTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO store_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value); err != nil {
		return fmt.Errorf("failed to write meta %q: %w", key, err)
	}
	return nil
}
