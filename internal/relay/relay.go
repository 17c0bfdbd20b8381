// Package relay implements the signaling relay: join/leave/send/poll over a
// presence registry and an append-only signal log, with TTL-based cleanup.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/signalhop/signalhop/internal/metrics"
	"github.com/signalhop/signalhop/internal/models"
)

const (
	// PresenceTTL is how long a participant may go unseen before being reaped.
	PresenceTTL = 5 * time.Minute

	// SignalRetention bounds how long signals are kept, delivered or not.
	SignalRetention = 2 * time.Hour
)

var (
	// ErrInvalidKind is returned when a signal kind is outside the enumeration.
	ErrInvalidKind = errors.New("invalid signal kind")

	// ErrEmptyPayload is returned when a signal carries no payload.
	ErrEmptyPayload = errors.New("missing signal payload")
)

// PresenceStore tracks which callers are active in which room.
// Absence of a row is a valid state, never an error.
type PresenceStore interface {
	// UpsertPresence inserts or refreshes the (room, caller) row and returns
	// the other participants currently recorded in the room.
	UpsertPresence(ctx context.Context, room models.RoomToken, callerID string) ([]string, error)

	// TouchPresence refreshes last_seen if the row exists; no-op otherwise.
	TouchPresence(ctx context.Context, room models.RoomToken, callerID string) error

	// RemovePresence deletes the row if present; idempotent.
	RemovePresence(ctx context.Context, room models.RoomToken, callerID string) error

	// ReapStalePresence deletes rows unseen for longer than ttl and returns
	// how many were removed.
	ReapStalePresence(ctx context.Context, ttl time.Duration) (int64, error)
}

// SignalStore is the append-only, globally ordered log of relayed signals.
type SignalStore interface {
	// AppendSignal assigns the next global id, stores the record, and returns
	// the id. Id assignment is atomic: concurrent appends never collide.
	AppendSignal(ctx context.Context, sig *models.Signal) (int64, error)

	// SignalsAfter returns, in ascending id order, every signal in room with
	// id > sinceID that is addressed to callerID or broadcast, excluding
	// signals sent by callerID.
	SignalsAfter(ctx context.Context, room models.RoomToken, callerID string, sinceID int64) ([]models.Signal, error)

	// PurgeSignalsBefore deletes signals older than maxAge and returns how
	// many were removed.
	PurgeSignalsBefore(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Service composes the presence registry and signal log and owns the cleanup
// policy for both. Every operation is a self-contained unit of work; Poll
// never blocks waiting for messages.
type Service struct {
	presence PresenceStore
	signals  SignalStore
	logger   zerolog.Logger
}

// NewService creates a relay service over the given stores.
func NewService(presence PresenceStore, signals SignalStore, logger zerolog.Logger) *Service {
	return &Service{
		presence: presence,
		signals:  signals,
		logger:   logger,
	}
}

// Join registers the caller's presence in the room and returns the other
// participants recorded at this instant. Repeated joins refresh last_seen
// rather than duplicating the row. The snapshot may be stale by the time the
// caller acts on it.
func (s *Service) Join(ctx context.Context, room models.RoomToken, callerID string) ([]string, error) {
	others, err := s.presence.UpsertPresence(ctx, room, callerID)
	if err != nil {
		return nil, err
	}
	metrics.JoinsTotal.Inc()
	return others, nil
}

// Leave removes the caller's presence and appends a broadcast bye so that
// polling peers observe the departure asynchronously. Idempotent.
func (s *Service) Leave(ctx context.Context, room models.RoomToken, callerID string) error {
	if err := s.presence.RemovePresence(ctx, room, callerID); err != nil {
		return err
	}
	bye := &models.Signal{
		Room:     room,
		SenderID: callerID,
		Kind:     models.KindBye,
		Payload:  "{}",
	}
	if _, err := s.signals.AppendSignal(ctx, bye); err != nil {
		return err
	}
	metrics.LeavesTotal.Inc()
	return nil
}

// Send validates and appends a signal, touches the sender's presence, and
// opportunistically purges old signals. Returns the new signal id.
// targetID nil means broadcast.
func (s *Service) Send(ctx context.Context, room models.RoomToken, callerID string, targetID *string, kind models.SignalKind, payload string) (int64, error) {
	if !kind.Valid() {
		return 0, ErrInvalidKind
	}
	if payload == "" {
		return 0, ErrEmptyPayload
	}

	sig := &models.Signal{
		Room:     room,
		SenderID: callerID,
		TargetID: targetID,
		Kind:     kind,
		Payload:  payload,
	}
	id, err := s.signals.AppendSignal(ctx, sig)
	if err != nil {
		return 0, err
	}
	metrics.SignalsRelayed.WithLabelValues(string(kind)).Inc()

	// Sending counts as a heartbeat for an already-joined sender.
	if err := s.presence.TouchPresence(ctx, room, callerID); err != nil {
		s.logger.Warn().Err(err).Str("room", room.String()).Msg("presence touch failed")
	}

	s.purgeSignals(ctx)

	return id, nil
}

// Poll touches the caller's presence, returns signals addressed to it with
// id > sinceID in ascending id order, and opportunistically reaps stale
// presence. The second return value is the new cursor: the greatest id
// observed, or sinceID unchanged when nothing matched.
func (s *Service) Poll(ctx context.Context, room models.RoomToken, callerID string, sinceID int64) ([]models.Signal, int64, error) {
	if err := s.presence.TouchPresence(ctx, room, callerID); err != nil {
		s.logger.Warn().Err(err).Str("room", room.String()).Msg("presence touch failed")
	}

	sigs, err := s.signals.SignalsAfter(ctx, room, callerID, sinceID)
	if err != nil {
		return nil, sinceID, err
	}
	metrics.PollsTotal.Inc()

	s.reapPresence(ctx)

	latest := sinceID
	if len(sigs) > 0 {
		latest = sigs[len(sigs)-1].ID
	}
	return sigs, latest, nil
}

// Sweep runs one full cleanup pass: stale presence and expired signals.
func (s *Service) Sweep(ctx context.Context) {
	s.reapPresence(ctx)
	s.purgeSignals(ctx)
}

// RunSweeper runs Sweep on the given interval until ctx is cancelled.
// The opportunistic cleanup inside Send/Poll still applies; the sweeper
// keeps quiet deployments bounded too.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("cleanup sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cleanup sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Cleanup is advisory: failures are logged and never surfaced to the caller
// of the primary operation.

func (s *Service) reapPresence(ctx context.Context) {
	n, err := s.presence.ReapStalePresence(ctx, PresenceTTL)
	if err != nil {
		s.logger.Warn().Err(err).Msg("presence reap failed")
		return
	}
	if n > 0 {
		metrics.ParticipantsReaped.Add(float64(n))
		s.logger.Debug().Int64("removed", n).Msg("reaped stale participants")
	}
}

func (s *Service) purgeSignals(ctx context.Context) {
	n, err := s.signals.PurgeSignalsBefore(ctx, SignalRetention)
	if err != nil {
		s.logger.Warn().Err(err).Msg("signal purge failed")
		return
	}
	if n > 0 {
		metrics.SignalsPurged.Add(float64(n))
		s.logger.Debug().Int64("removed", n).Msg("purged expired signals")
	}
}
