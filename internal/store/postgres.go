package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signalhop/signalhop/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS callers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT DEFAULT '',
		token_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS rtc_participants (
		room TEXT NOT NULL,
		caller_id TEXT NOT NULL,
		last_seen TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (room, caller_id)
	);

	CREATE TABLE IF NOT EXISTS rtc_signals (
		id BIGSERIAL PRIMARY KEY,
		room TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		target_id TEXT,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_participants_last_seen ON rtc_participants(last_seen);
	CREATE INDEX IF NOT EXISTS idx_signals_room_id ON rtc_signals(room, id);
	CREATE INDEX IF NOT EXISTS idx_signals_created_at ON rtc_signals(created_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateCaller creates a new caller record.
func (s *PostgresStore) CreateCaller(ctx context.Context, name, tokenHash string) (*models.Caller, error) {
	caller := &models.Caller{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO callers (name, token_hash)
		VALUES ($1, $2)
		RETURNING id, name, token_hash, created_at
	`, name, tokenHash).Scan(
		&caller.ID,
		&caller.Name,
		&caller.TokenHash,
		&caller.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return caller, nil
}

// GetCallerByID retrieves a caller by ID.
func (s *PostgresStore) GetCallerByID(ctx context.Context, id uuid.UUID) (*models.Caller, error) {
	caller := &models.Caller{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, token_hash, created_at
		FROM callers WHERE id = $1
	`, id).Scan(
		&caller.ID,
		&caller.Name,
		&caller.TokenHash,
		&caller.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return caller, nil
}

// CountCallers returns the total number of registered callers.
func (s *PostgresStore) CountCallers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM callers`).Scan(&count)
	return count, err
}

// UpsertPresence inserts or refreshes the presence row, then returns the
// other participants recorded in the room.
func (s *PostgresStore) UpsertPresence(ctx context.Context, room models.RoomToken, callerID string) ([]string, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rtc_participants (room, caller_id, last_seen)
		VALUES ($1, $2, NOW())
		ON CONFLICT (room, caller_id) DO UPDATE SET last_seen = NOW()
	`, room.String(), callerID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT caller_id FROM rtc_participants
		WHERE room = $1 AND caller_id != $2
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
func (s *PostgresStore) TouchPresence(ctx context.Context, room models.RoomToken, callerID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE rtc_participants SET last_seen = NOW()
		WHERE room = $1 AND caller_id = $2
	`, room.String(), callerID)
	return err
}

// RemovePresence deletes the row if present.
func (s *PostgresStore) RemovePresence(ctx context.Context, room models.RoomToken, callerID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM rtc_participants WHERE room = $1 AND caller_id = $2
	`, room.String(), callerID)
	return err
}

// ReapStalePresence deletes rows unseen for longer than ttl.
func (s *PostgresStore) ReapStalePresence(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM rtc_participants WHERE last_seen < NOW() - $1::interval
	`, ttl.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountParticipants returns the number of presence rows across all rooms.
func (s *PostgresStore) CountParticipants(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rtc_participants`).Scan(&count)
	return count, err
}

// ListActiveRooms summarizes rooms with at least one participant.
func (s *PostgresStore) ListActiveRooms(ctx context.Context, limit int) ([]models.RoomOverview, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT room, COUNT(*), MAX(last_seen)
		FROM rtc_participants
		GROUP BY room
		ORDER BY MAX(last_seen) DESC
		LIMIT $1
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

// AppendSignal stores a signal and returns its assigned id. BIGSERIAL
// allocation keeps ids strictly increasing under concurrent appends.
func (s *PostgresStore) AppendSignal(ctx context.Context, sig *models.Signal) (int64, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rtc_signals (room, sender_id, target_id, kind, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, sig.Room.String(), sig.SenderID, sig.TargetID, string(sig.Kind), sig.Payload).Scan(&sig.ID, &sig.CreatedAt)
	if err != nil {
		return 0, err
	}
	return sig.ID, nil
}

// SignalsAfter returns matching signals in ascending id order.
func (s *PostgresStore) SignalsAfter(ctx context.Context, room models.RoomToken, callerID string, sinceID int64) ([]models.Signal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room, sender_id, target_id, kind, payload, created_at
		FROM rtc_signals
		WHERE room = $1 AND id > $2
		  AND (target_id = $3 OR target_id IS NULL)
		  AND sender_id != $3
		ORDER BY id ASC
	`, room.String(), sinceID, callerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Signal, 0)
	for rows.Next() {
		var sig models.Signal
		var roomStr, kind string
		if err := rows.Scan(&sig.ID, &roomStr, &sig.SenderID, &sig.TargetID, &kind, &sig.Payload, &sig.CreatedAt); err != nil {
			return nil, err
		}
		sig.Room = models.RoomToken(roomStr)
		sig.Kind = models.SignalKind(kind)
		out = append(out, sig)
	}
	return out, rows.Err()
}

// PurgeSignalsBefore deletes signals older than maxAge.
func (s *PostgresStore) PurgeSignalsBefore(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM rtc_signals WHERE created_at < NOW() - $1::interval
	`, maxAge.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountSignals returns the number of retained signals.
func (s *PostgresStore) CountSignals(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rtc_signals`).Scan(&count)
	return count, err
}

// LastSignalAt returns the newest signal timestamp.
func (s *PostgresStore) LastSignalAt(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(created_at) FROM rtc_signals`).Scan(&t)
	if err != nil {
		return nil, err
	}
	return t, nil
}
