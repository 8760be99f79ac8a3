package gamedb

import (
	"errors"
	"testing"
)

func TestMoveCapacityBookkeeping(t *testing.T) {
	g := NewGraph()
	room, _ := g.Create("room", Props{PropContainSize: Int(1000000)}, ClassRoom)
	agent, _ := g.Create("agent", Props{PropContainSize: Int(20)}, ClassAgent)
	obj, _ := g.Create("boulder", Props{PropSize: Int(5)}, ClassObject)

	if err := g.Move(agent, room); err != nil {
		t.Fatalf("move agent: %v", err)
	}
	if err := g.Move(obj, room); err != nil {
		t.Fatalf("move obj: %v", err)
	}
	roomBefore := g.IntProp(room, PropContainSize)
	agentBefore := g.IntProp(agent, PropContainSize)

	if err := g.Move(obj, agent); err != nil {
		t.Fatalf("move obj to agent: %v", err)
	}
	if got := g.IntProp(agent, PropContainSize); got != agentBefore-5 {
		t.Errorf("agent contain_size = %d, want %d", got, agentBefore-5)
	}
	if got := g.IntProp(room, PropContainSize); got != roomBefore+5 {
		t.Errorf("room contain_size = %d, want %d", got, roomBefore+5)
	}
	if loc, _ := g.Location(obj); loc != agent {
		t.Errorf("location = %q, want %q", loc, agent)
	}
	if c := g.Contains(agent); len(c) != 1 || c[0] != obj {
		t.Errorf("agent contains %v", c)
	}
}

func TestMoveCapacityError(t *testing.T) {
	g := NewGraph()
	box, _ := g.Create("box", Props{PropContainSize: Int(2)}, ClassObject, ClassContainer)
	anvil, _ := g.Create("anvil", Props{PropSize: Int(3)}, ClassObject)

	if g.ObjFits(anvil, box) {
		t.Fatal("anvil should not fit")
	}
	err := g.Move(anvil, box)
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	var ce *CapacityError
	if !errors.As(err, &ce) || ce.Size != 3 || ce.Free != 2 {
		t.Errorf("unexpected capacity error %+v", ce)
	}
	if loc, _ := g.Location(anvil); loc != VoidID {
		t.Errorf("failed move changed location to %q", loc)
	}
	if got := g.IntProp(box, PropContainSize); got != 2 {
		t.Errorf("failed move changed capacity to %d", got)
	}
}

func TestMoveInvariantViolations(t *testing.T) {
	g := NewGraph()
	bag, _ := g.Create("bag", Props{PropContainSize: Int(10)}, ClassObject, ClassContainer)
	pouch, _ := g.Create("pouch", Props{PropContainSize: Int(5)}, ClassObject, ClassContainer)
	if err := g.Move(pouch, bag); err != nil {
		t.Fatalf("move: %v", err)
	}

	tests := []struct {
		name     string
		id, dest string
	}{
		{"unknown entity", "ghost", bag},
		{"unknown container", bag, "ghost"},
		{"into itself", bag, bag},
		{"into descendant", bag, pouch},
		{"the void", VoidID, bag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Move(tt.id, tt.dest)
			var ie *InvariantError
			if !errors.As(err, &ie) {
				t.Fatalf("expected *InvariantError, got %v", err)
			}
		})
	}
}

func TestForestInvariant(t *testing.T) {
	g := NewGraph()
	room, _ := g.Create("room", nil, ClassRoom)
	chest, _ := g.Create("chest", Props{PropContainSize: Int(10)}, ClassObject, ClassContainer)
	coin, _ := g.Create("coin", nil, ClassObject)
	g.Move(chest, room)
	g.Move(coin, chest)

	for _, id := range g.IDs() {
		cur := id
		steps := 0
		for cur != VoidID {
			next, ok := g.Location(cur)
			if !ok {
				t.Fatalf("%s has no location", cur)
			}
			cur = next
			steps++
			if steps > g.Len() {
				t.Fatalf("cycle reached from %s", id)
			}
		}
	}
	if loc, _ := g.Location(VoidID); loc != VoidID {
		t.Errorf("void should contain itself, got %q", loc)
	}
	if r, ok := g.RoomOf(coin); !ok || r != room {
		t.Errorf("RoomOf(coin) = %q, %v", r, ok)
	}
}

func TestDeferredDeletion(t *testing.T) {
	g := NewGraph()
	hall, _ := g.Create("hall", nil, ClassRoom)
	yard, _ := g.Create("yard", nil, ClassRoom)
	g.AddPath(hall, yard, "north", "south", "")
	chest, _ := g.Create("chest", Props{PropContainSize: Int(10)}, ClassObject, ClassContainer)
	gem, _ := g.Create("gem", nil, ClassObject)
	dog, _ := g.Create("dog", nil, ClassAgent)
	g.Move(chest, yard)
	g.Move(gem, chest)
	g.Move(dog, hall)
	if err := g.Follow(dog, chest); err != nil {
		t.Fatalf("follow: %v", err)
	}

	hallFree := g.IntProp(hall, PropContainSize)
	g.Delete(yard)
	g.Delete(yard)
	if !g.Exists(yard) {
		t.Fatal("delete must be deferred until flush")
	}
	if len(g.Pending()) != 1 {
		t.Errorf("pending = %v, want one entry", g.Pending())
	}

	removed := g.FlushDeletions()
	if len(removed) != 3 {
		t.Fatalf("removed %v, want yard, chest and gem", removed)
	}
	for _, id := range []string{yard, chest, gem} {
		if g.Exists(id) {
			t.Errorf("%s still exists", id)
		}
	}
	if n := g.Neighbors(hall); len(n) != 0 {
		t.Errorf("hall still has paths to %v", n)
	}
	if f := g.Following(dog); f != "" {
		t.Errorf("dog still follows %q", f)
	}
	if got := g.IntProp(hall, PropContainSize); got != hallFree {
		t.Errorf("hall capacity changed: %d != %d", got, hallFree)
	}
	if rooms := g.Rooms(); len(rooms) != 1 || rooms[0] != hall {
		t.Errorf("rooms = %v", rooms)
	}
	if len(g.Pending()) != 0 {
		t.Error("pending list not cleared")
	}
}

func TestVoidIsNeverDeleted(t *testing.T) {
	g := NewGraph()
	g.Delete(VoidID)
	g.FlushDeletions()
	if !g.Exists(VoidID) {
		t.Fatal("void was deleted")
	}
}
