package content

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/crystal-mush/graphworld/pkg/events"
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/world"
)

func TestLoadAndBuild(t *testing.T) {
	p, err := LoadFile("testdata/small.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g := gamedb.NewGraph()
	ids, err := Build(g, p)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	hall, cellar, guard := ids["hall"], ids["cellar"], ids["guard"]
	if !g.IsLocked(hall, cellar) || !g.IsLocked(cellar, hall) {
		t.Error("cellar door should start locked")
	}
	if p, _ := g.PathBetween(hall, cellar); p.LockedWith != ids["iron_key"] {
		t.Errorf("locked with %q", p.LockedWith)
	}
	if loc, _ := g.Location(ids["iron_key"]); loc != guard {
		t.Errorf("key at %q", loc)
	}
	if loc, _ := g.Location(ids["wine"]); loc != ids["barrel"] {
		t.Errorf("wine at %q", loc)
	}
	if got := g.IntProp(ids["barrel"], gamedb.PropContainSize); got != 7 {
		t.Errorf("barrel free space = %d, want 7", got)
	}
	if got := g.IntProp(guard, gamedb.PropHealth); got != 8 {
		t.Errorf("guard health = %d", got)
	}
	if got := g.IntProp(guard, gamedb.PropSpeed); got != DefaultSpeed {
		t.Errorf("guard speed = %d", got)
	}
	if !g.HasClass(ids["wine"], gamedb.ClassDrink) || !g.HasClass(ids["wine"], gamedb.ClassObject) {
		t.Error("wine classes")
	}
	if got := g.StrProp(hall, gamedb.PropDesc); !strings.HasPrefix(got, "A drafty hall") {
		t.Errorf("hall text = %q", got)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"unknown field", "rooms:\n  - {key: a, desc: a, colour: red}\n", "colour"},
		{"duplicate key", "rooms:\n  - {key: a, desc: a}\n  - {key: a, desc: b}\n", "duplicate key"},
		{"bad path", "rooms:\n  - {key: a, desc: a}\npaths:\n  - {from: a, to: b, label: north}\n", "unknown rooms"},
		{"bad class", "objects:\n  - {key: o, desc: o, classes: [flying]}\n", "unknown class"},
		{"agent in object", "objects:\n  - {key: o, desc: o}\nagents:\n  - {key: g, desc: g, in: o}\n", "must be in a room"},
		{"locked without key", "rooms:\n  - {key: a, desc: a}\n  - {key: b, desc: b}\npaths:\n  - {from: a, to: b, label: n, locked: true}\n", "without a key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
	_, err := Load(strings.NewReader("rooms:\n  - {key: a}\n"))
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("validation errors should wrap ErrInvalid: %v", err)
	}
}

func TestPopulator(t *testing.T) {
	p, err := LoadFile("testdata/small.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g := gamedb.NewGraph()
	if _, err := Build(g, p); err != nil {
		t.Fatalf("build: %v", err)
	}
	w := world.New(g, world.DefaultRegistry(), events.NewBus(), world.Config{})
	pop := NewPopulator(p, rand.NewSource(3))

	var id string
	w.Locked(func(w *world.World) { id, err = pop.SpawnReplacementNPC(w) })
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if !strings.HasPrefix(id, "rat_") || !w.IsAlive(id) {
		t.Fatalf("spawned %q", id)
	}
	if room, ok := g.RoomOf(id); !ok || !g.HasClass(room, gamedb.ClassRoom) {
		t.Errorf("rat placed in %q", room)
	}
	if c := g.Contains(id); len(c) != 1 || !g.HasClass(c[0], gamedb.ClassFood) {
		t.Errorf("rat carries %v", c)
	}
	if got := g.IntProp(id, gamedb.PropSpeed); got != 3 {
		t.Errorf("rat speed = %d", got)
	}

	empty := NewPopulator(&Pack{}, nil)
	w.Locked(func(w *world.World) { _, err = empty.SpawnReplacementNPC(w) })
	if err == nil {
		t.Error("populator without templates should fail")
	}
}
