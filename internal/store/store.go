package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/signalhop/signalhop/internal/models"
)

// DataStore defines the interface for persistent storage of callers, room
// presence, and the signal log. PostgresStore, SQLiteStore, and MemoryStore
// implement this interface; the relay service consumes the presence and
// signal subsets through its own narrow interfaces.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Caller registry
	CreateCaller(ctx context.Context, name, tokenHash string) (*models.Caller, error)
	GetCallerByID(ctx context.Context, id uuid.UUID) (*models.Caller, error)
	CountCallers(ctx context.Context) (int64, error)

	// Presence registry
	UpsertPresence(ctx context.Context, room models.RoomToken, callerID string) ([]string, error)
	TouchPresence(ctx context.Context, room models.RoomToken, callerID string) error
	RemovePresence(ctx context.Context, room models.RoomToken, callerID string) error
	ReapStalePresence(ctx context.Context, ttl time.Duration) (int64, error)
	CountParticipants(ctx context.Context) (int64, error)
	ListActiveRooms(ctx context.Context, limit int) ([]models.RoomOverview, error)

	// Signal log
	AppendSignal(ctx context.Context, sig *models.Signal) (int64, error)
	SignalsAfter(ctx context.Context, room models.RoomToken, callerID string, sinceID int64) ([]models.Signal, error)
	PurgeSignalsBefore(ctx context.Context, maxAge time.Duration) (int64, error)
	CountSignals(ctx context.Context) (int64, error)
	LastSignalAt(ctx context.Context) (*time.Time, error)
}
