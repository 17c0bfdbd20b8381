package relay

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/signalhop/signalhop/internal/models"
	"github.com/signalhop/signalhop/internal/store"
)

// testService returns a relay service over a fresh in-memory store with a
// controllable clock.
func testService(t *testing.T) (*Service, *store.MemoryStore, *time.Time) {
	t.Helper()
	mem := store.NewMemoryStore()
	now := time.Now()
	mem.SetClock(func() time.Time { return now })
	return NewService(mem, mem, zerolog.Nop()), mem, &now
}

func strPtr(s string) *string { return &s }

func TestSendRejectsInvalidKind(t *testing.T) {
	svc, _, _ := testService(t)

	_, err := svc.Send(context.Background(), "r1", "C", nil, "explode", "x")
	if err != ErrInvalidKind {
		t.Fatalf("err = %v, want ErrInvalidKind", err)
	}
}

func TestSendRejectsEmptyPayload(t *testing.T) {
	svc, mem, _ := testService(t)

	_, err := svc.Send(context.Background(), "r1", "C", nil, models.KindOffer, "")
	if err != ErrEmptyPayload {
		t.Fatalf("err = %v, want ErrEmptyPayload", err)
	}

	// Validation happens before any store mutation.
	count, _ := mem.CountSignals(context.Background())
	if count != 0 {
		t.Fatalf("rejected send stored %d signals", count)
	}
}

func TestPollExcludesOwnSignals(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "r1", "A", nil, models.KindHello, "{}"); err != nil {
		t.Fatal(err)
	}

	sigs, latest, err := svc.Poll(ctx, "r1", "A", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 0 {
		t.Fatalf("A received its own signal: %+v", sigs)
	}
	if latest != 0 {
		t.Fatalf("latest = %d, want unchanged cursor 0", latest)
	}
}

func TestUnicastTargeting(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	id, err := svc.Send(ctx, "r1", "B", strPtr("A"), models.KindOffer, "sdp1")
	if err != nil {
		t.Fatal(err)
	}

	// Addressed participant sees it.
	sigs, latest, err := svc.Poll(ctx, "r1", "A", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 1 || sigs[0].ID != id {
		t.Fatalf("A poll = %+v, want the unicast offer", sigs)
	}
	if latest != id {
		t.Fatalf("latest = %d, want %d", latest, id)
	}

	// A third participant never sees it.
	sigs, _, err = svc.Poll(ctx, "r1", "Y", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 0 {
		t.Fatalf("Y received a unicast addressed to A: %+v", sigs)
	}
}

func TestBroadcastReachesAllOthers(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "r1", "A", nil, models.KindHello, "{}"); err != nil {
		t.Fatal(err)
	}

	for _, peer := range []string{"B", "C"} {
		sigs, _, err := svc.Poll(ctx, "r1", peer, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(sigs) != 1 || sigs[0].SenderID != "A" {
			t.Fatalf("%s poll = %+v, want A's broadcast", peer, sigs)
		}
	}
}

func TestPollIsIdempotentWithoutWrites(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "r1", "B", strPtr("A"), models.KindOffer, "sdp1"); err != nil {
		t.Fatal(err)
	}

	first, firstLatest, err := svc.Poll(ctx, "r1", "A", 0)
	if err != nil {
		t.Fatal(err)
	}
	second, secondLatest, err := svc.Poll(ctx, "r1", "A", 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) || firstLatest != secondLatest {
		t.Fatalf("repeated poll differs: %d/%d signals, latest %d/%d",
			len(first), len(second), firstLatest, secondLatest)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("repeated poll returned different ids at %d: %d vs %d", i, first[i].ID, second[i].ID)
		}
	}
}

func TestNoOrderingAcrossRooms(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	id1, _ := svc.Send(ctx, "r1", "A", nil, models.KindHello, "{}")
	id2, _ := svc.Send(ctx, "r2", "A", nil, models.KindHello, "{}")
	id3, _ := svc.Send(ctx, "r1", "A", nil, models.KindCandidate, "c")

	// Ids are globally increasing even when rooms interleave.
	if !(id1 < id2 && id2 < id3) {
		t.Fatalf("ids not globally increasing: %d, %d, %d", id1, id2, id3)
	}

	// Each room's poll only carries its own partition.
	sigs, _, err := svc.Poll(ctx, "r1", "B", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 2 {
		t.Fatalf("r1 poll = %d signals, want 2", len(sigs))
	}
}

func TestJoinUpsertsPresence(t *testing.T) {
	svc, mem, _ := testService(t)
	ctx := context.Background()

	others, err := svc.Join(ctx, "r1", "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 0 {
		t.Fatalf("first join sees %v, want empty", others)
	}

	// Second join refreshes rather than duplicating.
	if _, err := svc.Join(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}
	count, _ := mem.CountParticipants(ctx)
	if count != 1 {
		t.Fatalf("participants = %d, want 1", count)
	}

	others, err = svc.Join(ctx, "r1", "B")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 1 || others[0] != "A" {
		t.Fatalf("B sees %v, want [A]", others)
	}
}

func TestLeaveAppendsBroadcastBye(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Join(ctx, "r1", "B"); err != nil {
		t.Fatal(err)
	}

	if err := svc.Leave(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}
	// Repeated leave is fine.
	if err := svc.Leave(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}

	sigs, _, err := svc.Poll(ctx, "r1", "B", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 2 {
		t.Fatalf("B poll = %d signals, want 2 byes", len(sigs))
	}
	for _, sig := range sigs {
		if sig.Kind != models.KindBye || sig.SenderID != "A" || sig.TargetID != nil {
			t.Fatalf("unexpected departure signal: %+v", sig)
		}
	}

	// A's presence row is gone.
	others, err := svc.Join(ctx, "r1", "C")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 1 || others[0] != "B" {
		t.Fatalf("C sees %v, want [B]", others)
	}
}

func TestStaleParticipantsReapedOnPoll(t *testing.T) {
	svc, _, now := testService(t)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}

	// A goes silent past the TTL; B's poll triggers the reap.
	*now = now.Add(PresenceTTL + time.Minute)
	if _, _, err := svc.Poll(ctx, "r1", "B", 0); err != nil {
		t.Fatal(err)
	}

	others, err := svc.Join(ctx, "r1", "B")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 0 {
		t.Fatalf("B sees %v after A went stale, want empty", others)
	}
}

func TestPollRefreshesPresence(t *testing.T) {
	svc, _, now := testService(t)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}

	// A keeps polling; each poll is a heartbeat.
	for i := 0; i < 3; i++ {
		*now = now.Add(4 * time.Minute)
		if _, _, err := svc.Poll(ctx, "r1", "A", 0); err != nil {
			t.Fatal(err)
		}
	}

	others, err := svc.Join(ctx, "r1", "B")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 1 || others[0] != "A" {
		t.Fatalf("B sees %v, want [A] kept alive by polling", others)
	}
}

func TestRetentionPurgesUndeliveredSignals(t *testing.T) {
	svc, _, now := testService(t)
	ctx := context.Background()

	if _, err := svc.Send(ctx, "r1", "B", strPtr("A"), models.KindOffer, "sdp1"); err != nil {
		t.Fatal(err)
	}

	// A never polls; the offer ages out. The next send runs the purge.
	*now = now.Add(SignalRetention + time.Minute)
	freshID, err := svc.Send(ctx, "r1", "B", strPtr("A"), models.KindOffer, "sdp2")
	if err != nil {
		t.Fatal(err)
	}

	sigs, latest, err := svc.Poll(ctx, "r1", "A", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 1 || sigs[0].ID != freshID {
		t.Fatalf("A poll = %+v, want only the fresh offer %d", sigs, freshID)
	}
	if latest != freshID {
		t.Fatalf("latest = %d, want %d", latest, freshID)
	}
}

func TestSweepCleansBothStores(t *testing.T) {
	svc, mem, now := testService(t)
	ctx := context.Background()

	if _, err := svc.Join(ctx, "r1", "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(ctx, "r1", "A", nil, models.KindHello, "{}"); err != nil {
		t.Fatal(err)
	}

	*now = now.Add(SignalRetention + time.Minute)
	svc.Sweep(ctx)

	participants, _ := mem.CountParticipants(ctx)
	signals, _ := mem.CountSignals(ctx)
	if participants != 0 || signals != 0 {
		t.Fatalf("after sweep: %d participants, %d signals, want 0/0", participants, signals)
	}
}

func TestEndToEndScenario(t *testing.T) {
	svc, _, _ := testService(t)
	ctx := context.Background()

	// A joins and sees nobody.
	others, err := svc.Join(ctx, "r1", "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 0 {
		t.Fatalf("A sees %v, want empty", others)
	}

	// B joins and sees A.
	others, err = svc.Join(ctx, "r1", "B")
	if err != nil {
		t.Fatal(err)
	}
	if len(others) != 1 || others[0] != "A" {
		t.Fatalf("B sees %v, want [A]", others)
	}

	// A polls: nothing sent yet.
	sigs, latest, err := svc.Poll(ctx, "r1", "A", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 0 || latest != 0 {
		t.Fatalf("A poll = %+v latest=%d, want empty/0", sigs, latest)
	}

	// B sends an offer to A.
	id, err := svc.Send(ctx, "r1", "B", strPtr("A"), models.KindOffer, "sdp1")
	if err != nil {
		t.Fatal(err)
	}

	// A polls since 0 and receives it.
	sigs, latest, err = svc.Poll(ctx, "r1", "A", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 1 {
		t.Fatalf("A poll = %d signals, want 1", len(sigs))
	}
	got := sigs[0]
	if got.ID != id || got.SenderID != "B" || got.TargetID == nil || *got.TargetID != "A" ||
		got.Kind != models.KindOffer || got.Payload != "sdp1" {
		t.Fatalf("unexpected signal: %+v", got)
	}
	if latest != id {
		t.Fatalf("latest = %d, want %d", latest, id)
	}

	// A polls again with the advanced cursor: nothing new.
	sigs, latest, err = svc.Poll(ctx, "r1", "A", latest)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 0 || latest != id {
		t.Fatalf("A second poll = %+v latest=%d, want empty/%d", sigs, latest, id)
	}
}
