package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/crystal-mush/graphworld/pkg/events"
)

func openTestSQL(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(filepath.Join(t.TempDir(), "scrollback.db"), 5)
	if err != nil {
		t.Fatalf("OpenSQLStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoomHistory(t *testing.T) {
	s := openTestSQL(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	turns := []RoomTurn{
		{ID: "01", Room: "hall_1", Actor: "guard_3", Caller: "say", Text: "Halt.", At: base},
		{ID: "02", Room: "yard_2", Actor: "cook_4", Caller: "say", Text: "Soup!", At: base.Add(time.Second)},
		{ID: "03", Room: "hall_1", Actor: "cook_4", Caller: "emote", Text: "The cook waves.", At: base.Add(2 * time.Second)},
		{ID: "04", Room: "hall_1", Actor: "guard_3", Caller: "say", Text: "Pass.", At: base.Add(3 * time.Second)},
	}
	for _, tr := range turns {
		if err := s.InsertTurn(tr); err != nil {
			t.Fatalf("InsertTurn: %v", err)
		}
	}
	if err := s.InsertTurn(turns[0]); err != nil {
		t.Errorf("repeated id: %v", err)
	}

	got, err := s.RoomHistory("hall_1", 2)
	if err != nil {
		t.Fatalf("RoomHistory: %v", err)
	}
	if len(got) != 2 || got[0].ID != "03" || got[1].ID != "04" {
		t.Fatalf("history = %+v", got)
	}
	if !got[1].At.Equal(turns[3].At) || got[1].Caller != "say" {
		t.Errorf("round trip = %+v", got[1])
	}

	all, _ := s.RoomHistory("hall_1", 0)
	if len(all) != 3 {
		t.Errorf("full history has %d turns", len(all))
	}

	n, err := s.PurgeOlderThan(base.Add(2 * time.Second))
	if err != nil || n != 2 {
		t.Errorf("PurgeOlderThan = %d, %v", n, err)
	}
	if err := s.Checkpoint(); err != nil {
		t.Errorf("Checkpoint: %v", err)
	}
}

func TestScrollbackWriterFlushesOnShutdown(t *testing.T) {
	s := openTestSQL(t)
	bus := events.NewBus()
	sw := NewScrollbackWriter(s, bus)

	bus.Emit(events.Event{ID: "a", Type: events.EvRoomLog, Source: "guard_3", Room: "hall_1", Text: "Halt.", Data: map[string]any{"caller": "say"}})
	bus.Emit(events.Event{ID: "b", Type: events.EvSay, Agent: "cook_4", Room: "hall_1", Text: "The guard says, \"Halt.\""})
	bus.Emit(events.Event{ID: "c", Type: events.EvRoomLog, Source: "cook_4", Room: "hall_1", Text: "The cook waves."})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sw.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !sw.Closed() {
		t.Error("writer still open after Run")
	}

	got, err := s.RoomHistory("hall_1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("stored %+v", got)
	}
	if got[0].Actor != "guard_3" || got[0].Caller != "say" {
		t.Errorf("first turn = %+v", got[0])
	}
}
