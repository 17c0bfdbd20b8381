package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalhop/signalhop/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteLastSignalAt(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	got, err := s.LastSignalAt(ctx)
	if err != nil {
		t.Fatalf("LastSignalAt on empty log: %v", err)
	}
	if got != nil {
		t.Fatalf("LastSignalAt on empty log = %v, want nil", got)
	}

	before := time.Now().UTC().Add(-time.Second)
	if _, err := s.AppendSignal(ctx, &models.Signal{
		Room:     "r1",
		SenderID: "A",
		Kind:     models.KindOffer,
		Payload:  "sdp",
	}); err != nil {
		t.Fatal(err)
	}

	got, err = s.LastSignalAt(ctx)
	if err != nil {
		t.Fatalf("LastSignalAt: %v", err)
	}
	if got == nil {
		t.Fatal("LastSignalAt = nil after append")
	}
	if got.Before(before) || got.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("LastSignalAt = %v, want a just-written timestamp", got)
	}
}

func TestSQLiteSignalRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	target := "A"
	id, err := s.AppendSignal(ctx, &models.Signal{
		Room:     "r1",
		SenderID: "B",
		TargetID: &target,
		Kind:     models.KindAnswer,
		Payload:  "sdp-answer",
	})
	if err != nil {
		t.Fatal(err)
	}

	sigs, err := s.SignalsAfter(ctx, "r1", "A", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 1 {
		t.Fatalf("got %d signals, want 1", len(sigs))
	}
	got := sigs[0]
	if got.ID != id || got.SenderID != "B" || got.Kind != models.KindAnswer || got.Payload != "sdp-answer" {
		t.Fatalf("unexpected signal: %+v", got)
	}
	if got.TargetID == nil || *got.TargetID != "A" {
		t.Fatalf("target = %v, want A", got.TargetID)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not persisted")
	}
}
