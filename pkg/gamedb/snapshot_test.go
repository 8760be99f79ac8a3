package gamedb

import (
	"reflect"
	"testing"
)

func buildWorld(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	hall, _ := g.Create("hall", Props{PropDesc: Str("A long hall.")}, ClassRoom)
	cellar, _ := g.Create("cellar", nil, ClassRoom)
	g.AddPath(hall, cellar, "down", "up", "")
	g.Lock(hall, cellar, "iron_key_9")
	guard, _ := g.Create("guard", Props{PropContainSize: Int(20), PropHealth: Int(6)}, ClassAgent)
	g.AddName(guard, "sentry")
	chest, _ := g.Create("chest", Props{PropContainSize: Int(10)}, ClassObject, ClassContainer)
	coin, _ := g.Create("coin", Props{PropSize: Int(1)}, ClassObject)
	cat, _ := g.Create("cat", nil, ClassAgent)
	g.Move(guard, hall)
	g.Move(cat, hall)
	g.Move(chest, cellar)
	g.Move(coin, chest)
	g.Follow(cat, guard)
	g.SetProp(guard, "quest_stage", List("started", "found_key"))
	return g
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := buildWorld(t)
	snap, err := g.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	restored, err := Restore(snap)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	again, err := restored.Snapshot()
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if !reflect.DeepEqual(snap.Entries, again.Entries) {
		t.Errorf("round trip changed the graph")
		for k, v := range snap.Entries {
			if again.Entries[k] != v {
				t.Logf("  %s: %q != %q", k, v, again.Entries[k])
			}
		}
	}

	if !restored.IsLocked("hall_1", "cellar_2") {
		t.Error("lock state lost")
	}
	if got := restored.Following("cat_6"); got != "guard_3" {
		t.Errorf("follow edge lost: %q", got)
	}
	if got := restored.IntProp("chest_4", PropContainSize); got != 9 {
		t.Errorf("chest contain_size = %d, want 9", got)
	}
	if v, _ := restored.Prop("guard_3", "quest_stage"); !v.Equal(List("started", "found_key")) {
		t.Errorf("extension prop = %+v", v)
	}
	id, _ := restored.Create("lamp", nil, ClassObject)
	if id != "lamp_7" {
		t.Errorf("counter not restored, got %q", id)
	}
}

func TestRestoreToleratesMissingKeys(t *testing.T) {
	g := buildWorld(t)
	snap, _ := g.Snapshot()
	delete(snap.Entries, keyNextID)
	delete(snap.Entries, keyRooms)
	delete(snap.Entries, prefixLocation+"coin_5")

	restored, err := Restore(snap)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if loc, _ := restored.Location("coin_5"); loc != VoidID {
		t.Errorf("coin without a location should land in the void, got %q", loc)
	}
	if rooms := restored.Rooms(); len(rooms) != 2 {
		t.Errorf("rooms rebuilt from classes = %v", rooms)
	}
}

func TestRestoreRejectsNewerVersion(t *testing.T) {
	if _, err := Restore(&Snapshot{Version: SnapshotVersion + 1}); err == nil {
		t.Fatal("expected an error for a newer snapshot")
	}
}
