package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "relay.db"), logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecentRelays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := RelayRecord{
		ID:        uuid.NewString(),
		ChatID:    100,
		ChatTitle: "Dev Chat",
		Sender:    "alice",
		Succeeded: 2,
		Failed:    1,
		Outcomes: []OutcomeRecord{
			{Target: "https://hooks.test/a", StatusCode: 204, OK: true},
			{Target: "https://hooks.test/b", StatusCode: 429, OK: false, Error: "webhook returned status 429"},
			{Target: "https://hooks.test/c", StatusCode: 200, OK: true},
		},
	}
	if err := s.RecordRelay(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecentRelays(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	r := got[0]
	if r.ID != rec.ID || r.ChatID != 100 || r.ChatTitle != "Dev Chat" || r.Sender != "alice" {
		t.Errorf("record mismatch: %+v", r)
	}
	if r.Succeeded != 2 || r.Failed != 1 {
		t.Errorf("counts = %d/%d, want 2/1", r.Succeeded, r.Failed)
	}
	if len(r.Outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(r.Outcomes))
	}
	if r.Outcomes[1].StatusCode != 429 || r.Outcomes[1].OK {
		t.Errorf("outcome mismatch: %+v", r.Outcomes[1])
	}
}

func TestRecentRelays_OrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := RelayRecord{
			ID:        uuid.NewString(),
			ChatID:    int64(i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.RecordRelay(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentRelays(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].ChatID != 4 || got[2].ChatID != 2 {
		t.Errorf("wrong order: %d, %d, %d", got[0].ChatID, got[1].ChatID, got[2].ChatID)
	}
}

func TestRecentRelays_Empty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.RecentRelays(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d records, want 0", len(got))
	}
}
