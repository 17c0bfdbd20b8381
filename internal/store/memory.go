package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalhop/signalhop/internal/models"
)

type presenceKey struct {
	room     models.RoomToken
	callerID string
}

// MemoryStore is an in-process DataStore. It is the default backend in
// development and the test backend. All state is guarded by a single mutex;
// signal id assignment happens under the same lock as the append, so ids are
// strictly increasing and never collide.
type MemoryStore struct {
	mu       sync.Mutex
	callers  map[uuid.UUID]models.Caller
	presence map[presenceKey]time.Time
	signals  []models.Signal // ascending by ID
	nextID   int64

	// now is the clock; tests override it to exercise TTL behavior.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		callers:  make(map[uuid.UUID]models.Caller),
		presence: make(map[presenceKey]time.Time),
		nextID:   0,
		now:      time.Now,
	}
}

// SetClock replaces the store's time source. Intended for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// CreateCaller registers a new caller.
func (s *MemoryStore) CreateCaller(ctx context.Context, name, tokenHash string) (*models.Caller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := models.Caller{
		ID:        uuid.New(),
		Name:      name,
		TokenHash: tokenHash,
		CreatedAt: s.now(),
	}
	s.callers[c.ID] = c
	return &c, nil
}

// GetCallerByID returns the caller, or nil if unknown.
func (s *MemoryStore) GetCallerByID(ctx context.Context, id uuid.UUID) (*models.Caller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.callers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// CountCallers returns the number of registered callers.
func (s *MemoryStore) CountCallers(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.callers)), nil
}

// UpsertPresence inserts or refreshes the presence row and returns the other
// participants recorded in the room.
func (s *MemoryStore) UpsertPresence(ctx context.Context, room models.RoomToken, callerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.presence[presenceKey{room, callerID}] = s.now()

	others := make([]string, 0)
	for k := range s.presence {
		if k.room == room && k.callerID != callerID {
			others = append(others, k.callerID)
		}
	}
	sort.Strings(others)
	return others, nil
}

// TouchPresence refreshes last_seen only if the row exists.
func (s *MemoryStore) TouchPresence(ctx context.Context, room models.RoomToken, callerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := presenceKey{room, callerID}
	if _, ok := s.presence[k]; ok {
		s.presence[k] = s.now()
	}
	return nil
}

// RemovePresence deletes the row if present.
func (s *MemoryStore) RemovePresence(ctx context.Context, room models.RoomToken, callerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.presence, presenceKey{room, callerID})
	return nil
}

// ReapStalePresence deletes rows unseen for longer than ttl.
func (s *MemoryStore) ReapStalePresence(ctx context.Context, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	var removed int64
	for k, seen := range s.presence {
		if seen.Before(cutoff) {
			delete(s.presence, k)
			removed++
		}
	}
	return removed, nil
}

// CountParticipants returns the number of presence rows across all rooms.
func (s *MemoryStore) CountParticipants(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.presence)), nil
}

// ListActiveRooms summarizes rooms with at least one participant, most
// recently seen first.
func (s *MemoryStore) ListActiveRooms(ctx context.Context, limit int) ([]models.RoomOverview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRoom := make(map[models.RoomToken]*models.RoomOverview)
	for k, seen := range s.presence {
		ov, ok := byRoom[k.room]
		if !ok {
			ov = &models.RoomOverview{Room: k.room}
			byRoom[k.room] = ov
		}
		ov.Participants++
		if seen.After(ov.LastSeen) {
			ov.LastSeen = seen
		}
	}

	rooms := make([]models.RoomOverview, 0, len(byRoom))
	for _, ov := range byRoom {
		rooms = append(rooms, *ov)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastSeen.After(rooms[j].LastSeen)
	})
	if limit > 0 && len(rooms) > limit {
		rooms = rooms[:limit]
	}
	return rooms, nil
}

// AppendSignal assigns the next id and stores the record.
func (s *MemoryStore) AppendSignal(ctx context.Context, sig *models.Signal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sig.ID = s.nextID
	sig.CreatedAt = s.now()
	s.signals = append(s.signals, *sig)
	return sig.ID, nil
}

// SignalsAfter returns matching signals in ascending id order.
func (s *MemoryStore) SignalsAfter(ctx context.Context, room models.RoomToken, callerID string, sinceID int64) ([]models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Signal, 0)
	for _, sig := range s.signals {
		if sig.ID <= sinceID || sig.Room != room || sig.SenderID == callerID {
			continue
		}
		if sig.TargetID != nil && *sig.TargetID != callerID {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

// PurgeSignalsBefore deletes signals older than maxAge.
func (s *MemoryStore) PurgeSignalsBefore(ctx context.Context, maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	kept := s.signals[:0]
	var removed int64
	for _, sig := range s.signals {
		if sig.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, sig)
	}
	s.signals = kept
	return removed, nil
}

// CountSignals returns the number of retained signals.
func (s *MemoryStore) CountSignals(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.signals)), nil
}

// LastSignalAt returns the newest signal timestamp, or nil when the log is
// empty.
func (s *MemoryStore) LastSignalAt(ctx context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.signals) == 0 {
		return nil, nil
	}
	t := s.signals[len(s.signals)-1].CreatedAt
	return &t, nil
}
