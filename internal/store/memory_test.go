package store

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/signalhop/signalhop/internal/models"
)

func strPtr(s string) *string { return &s }

func appendSignal(t *testing.T, s *MemoryStore, room models.RoomToken, sender string, target *string) int64 {
	t.Helper()
	id, err := s.AppendSignal(context.Background(), &models.Signal{
		Room:     room,
		SenderID: sender,
		TargetID: target,
		Kind:     models.KindOffer,
		Payload:  "sdp",
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestAppendSignalIDsAreMonotonic(t *testing.T) {
	s := NewMemoryStore()

	var prev int64
	for i := 0; i < 10; i++ {
		id := appendSignal(t, s, "r1", "A", nil)
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestAppendSignalIDsInjectiveUnderConcurrency(t *testing.T) {
	s := NewMemoryStore()

	const writers = 8
	const perWriter = 50

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(room models.RoomToken) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id, err := s.AppendSignal(context.Background(), &models.Signal{
					Room:     room,
					SenderID: "A",
					Kind:     models.KindCandidate,
					Payload:  "c",
				})
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}(models.RoomToken("r" + strconv.Itoa(w)))
	}
	wg.Wait()

	if len(seen) != writers*perWriter {
		t.Fatalf("got %d distinct ids, want %d", len(seen), writers*perWriter)
	}
}

func TestSignalsAfterFiltering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	appendSignal(t, s, "r1", "A", nil)           // broadcast from A
	appendSignal(t, s, "r1", "B", strPtr("A"))   // unicast B -> A
	appendSignal(t, s, "r1", "B", strPtr("C"))   // unicast B -> C
	appendSignal(t, s, "r2", "B", nil)           // other room
	lastID := appendSignal(t, s, "r1", "A", nil) // broadcast from A

	got, err := s.SignalsAfter(ctx, "r1", "A", 0)
	if err != nil {
		t.Fatal(err)
	}
	// A sees only B's unicast to A; never its own, never B->C, never r2.
	if len(got) != 1 {
		t.Fatalf("got %d signals for A, want 1: %+v", len(got), got)
	}
	if got[0].SenderID != "B" || got[0].TargetID == nil || *got[0].TargetID != "A" {
		t.Fatalf("unexpected signal for A: %+v", got[0])
	}

	got, err = s.SignalsAfter(ctx, "r1", "C", 0)
	if err != nil {
		t.Fatal(err)
	}
	// C sees A's two broadcasts and B's unicast to C, in id order.
	if len(got) != 3 {
		t.Fatalf("got %d signals for C, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].ID <= got[i-1].ID {
			t.Fatalf("results not in ascending id order: %d after %d", got[i].ID, got[i-1].ID)
		}
	}

	// Cursor excludes already-consumed ids.
	got, err = s.SignalsAfter(ctx, "r1", "C", lastID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d signals after cursor %d, want 0", len(got), lastID)
	}
}

func TestPurgeSignalsBefore(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	appendSignal(t, s, "r1", "A", nil)

	now = now.Add(3 * time.Hour)
	keptID := appendSignal(t, s, "r1", "A", nil)

	removed, err := s.PurgeSignalsBefore(context.Background(), 2*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	got, err := s.SignalsAfter(context.Background(), "r1", "B", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != keptID {
		t.Fatalf("expected only signal %d to survive, got %+v", keptID, got)
	}
}

func TestUpsertPresenceIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	others, err := s.UpsertPresence(ctx, "r1", "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 0 {
		t.Fatalf("first join should see no one, got %v", others)
	}

	// Repeated join must not duplicate the row.
	if _, err := s.UpsertPresence(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}
	count, err := s.CountParticipants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("participants = %d, want 1", count)
	}

	others, err = s.UpsertPresence(ctx, "r1", "B")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 1 || others[0] != "A" {
		t.Fatalf("B should see [A], got %v", others)
	}
}

func TestTouchPresenceDoesNotCreateRows(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.TouchPresence(ctx, "r1", "ghost"); err != nil {
		t.Fatal(err)
	}
	count, err := s.CountParticipants(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("touch created a presence row: count = %d", count)
	}
}

func TestReapStalePresence(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	if _, err := s.UpsertPresence(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(4 * time.Minute)
	if _, err := s.UpsertPresence(ctx, "r1", "B"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Minute)
	removed, err := s.ReapStalePresence(ctx, 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1 (only A is stale)", removed)
	}

	others, err := s.UpsertPresence(ctx, "r1", "C")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 1 || others[0] != "B" {
		t.Fatalf("C should see [B] after reap, got %v", others)
	}
}

func TestRemovePresenceIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.UpsertPresence(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemovePresence(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemovePresence(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}
	count, _ := s.CountParticipants(ctx)
	if count != 0 {
		t.Fatalf("participants = %d, want 0", count)
	}
}

func TestListActiveRooms(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	s.SetClock(func() time.Time { return now })

	s.UpsertPresence(ctx, "r1", "A")
	s.UpsertPresence(ctx, "r1", "B")
	now = now.Add(time.Minute)
	s.UpsertPresence(ctx, "r2", "C")

	rooms, err := s.ListActiveRooms(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 {
		t.Fatalf("rooms = %d, want 2", len(rooms))
	}
	// Most recently seen first.
	if rooms[0].Room != "r2" || rooms[0].Participants != 1 {
		t.Fatalf("unexpected first room: %+v", rooms[0])
	}
	if rooms[1].Room != "r1" || rooms[1].Participants != 2 {
		t.Fatalf("unexpected second room: %+v", rooms[1])
	}
}
