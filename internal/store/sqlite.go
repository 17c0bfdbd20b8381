package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/signalhop/signalhop/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/signalhop.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/signalhop.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS callers (
		id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		token_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rtc_participants (
		room TEXT NOT NULL,
		caller_id TEXT NOT NULL,
		last_seen DATETIME NOT NULL,
		PRIMARY KEY (room, caller_id)
	);

	-- AUTOINCREMENT keeps ids strictly increasing even after retention
	-- deletes rows from the high end.
	CREATE TABLE IF NOT EXISTS rtc_signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		target_id TEXT,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_participants_last_seen ON rtc_participants(last_seen);
	CREATE INDEX IF NOT EXISTS idx_signals_room_id ON rtc_signals(room, id);
	CREATE INDEX IF NOT EXISTS idx_signals_created_at ON rtc_signals(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateCaller creates a new caller record.
func (s *SQLiteStore) CreateCaller(ctx context.Context, name, tokenHash string) (*models.Caller, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO callers (id, name, token_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), name, tokenHash, now)
	if err != nil {
		return nil, err
	}

	return &models.Caller{ID: id, Name: name, TokenHash: tokenHash, CreatedAt: now}, nil
}

// GetCallerByID retrieves a caller by ID.
func (s *SQLiteStore) GetCallerByID(ctx context.Context, id uuid.UUID) (*models.Caller, error) {
	caller := &models.Caller{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, token_hash, created_at
		FROM callers WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&caller.Name,
		&caller.TokenHash,
		&caller.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	caller.ID = uuid.MustParse(idStr)
	return caller, nil
}

// CountCallers returns the total number of registered callers.
func (s *SQLiteStore) CountCallers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM callers`).Scan(&count)
	return count, err
}

// UpsertPresence inserts or refreshes the presence row, then returns the
// other participants recorded in the room.
func (s *SQLiteStore) UpsertPresence(ctx context.Context, room models.RoomToken, callerID string) ([]string, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rtc_participants (room, caller_id, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT (room, caller_id) DO UPDATE SET last_seen = excluded.last_seen
	`, room.String(), callerID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT caller_id FROM rtc_participants
		WHERE room = ? AND caller_id != ?
		ORDER BY caller_id
	`, room.String(), callerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	others := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		others = append(others, id)
	}
	return others, rows.Err()
}

// TouchPresence refreshes last_seen only if the row exists.
func (s *SQLiteStore) TouchPresence(ctx context.Context, room models.RoomToken, callerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rtc_participants SET last_seen = ?
		WHERE room = ? AND caller_id = ?
	`, time.Now().UTC(), room.String(), callerID)
	return err
}

// RemovePresence deletes the row if present.
func (s *SQLiteStore) RemovePresence(ctx context.Context, room models.RoomToken, callerID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM rtc_participants WHERE room = ? AND caller_id = ?
	`, room.String(), callerID)
	return err
}

// ReapStalePresence deletes rows unseen for longer than ttl.
func (s *SQLiteStore) ReapStalePresence(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM rtc_participants WHERE last_seen < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountParticipants returns the number of presence rows across all rooms.
func (s *SQLiteStore) CountParticipants(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rtc_participants`).Scan(&count)
	return count, err
}

// ListActiveRooms summarizes rooms with at least one participant.
func (s *SQLiteStore) ListActiveRooms(ctx context.Context, limit int) ([]models.RoomOverview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT room, COUNT(*), MAX(last_seen)
		FROM rtc_participants
		GROUP BY room
		ORDER BY MAX(last_seen) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.RoomOverview
	for rows.Next() {
		var ov models.RoomOverview
		var room string
		if err := rows.Scan(&room, &ov.Participants, &ov.LastSeen); err != nil {
			return nil, err
		}
		ov.Room = models.RoomToken(room)
		rooms = append(rooms, ov)
	}
	return rooms, rows.Err()
}

// AppendSignal stores a signal and returns its assigned id.
func (s *SQLiteStore) AppendSignal(ctx context.Context, sig *models.Signal) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rtc_signals (room, sender_id, target_id, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sig.Room.String(), sig.SenderID, sig.TargetID, string(sig.Kind), sig.Payload, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sig.ID = id
	sig.CreatedAt = now
	return id, nil
}

// SignalsAfter returns matching signals in ascending id order.
func (s *SQLiteStore) SignalsAfter(ctx context.Context, room models.RoomToken, callerID string, sinceID int64) ([]models.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room, sender_id, target_id, kind, payload, created_at
		FROM rtc_signals
		WHERE room = ? AND id > ?
		  AND (target_id = ? OR target_id IS NULL)
		  AND sender_id != ?
		ORDER BY id ASC
	`, room.String(), sinceID, callerID, callerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSignals(rows)
}

// PurgeSignalsBefore deletes signals older than maxAge.
func (s *SQLiteStore) PurgeSignalsBefore(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM rtc_signals WHERE created_at < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountSignals returns the number of retained signals.
func (s *SQLiteStore) CountSignals(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rtc_signals`).Scan(&count)
	return count, err
}

// LastSignalAt returns the newest signal timestamp, or nil when the log is
// empty. Selecting the column directly (rather than MAX(created_at), which
// loses the DATETIME decltype) lets the driver hand back a time.Time.
func (s *SQLiteStore) LastSignalAt(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM rtc_signals ORDER BY id DESC LIMIT 1
	`).Scan(&t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// scanSignals reads signal rows from a database/sql result set.
func scanSignals(rows *sql.Rows) ([]models.Signal, error) {
	out := make([]models.Signal, 0)
	for rows.Next() {
		var sig models.Signal
		var room, kind string
		if err := rows.Scan(&sig.ID, &room, &sig.SenderID, &sig.TargetID, &kind, &sig.Payload, &sig.CreatedAt); err != nil {
			return nil, err
		}
		sig.Room = models.RoomToken(room)
		sig.Kind = models.SignalKind(kind)
		out = append(out, sig)
	}
	return out, rows.Err()
}
