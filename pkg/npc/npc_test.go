package npc

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crystal-mush/graphworld/pkg/events"
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/world"
)

func newWorld(t *testing.T) (*world.World, string, string) {
	t.Helper()
	g := gamedb.NewGraph()
	room, _ := g.Create("meadow", nil, gamedb.ClassRoom)
	other, _ := g.Create("forest", nil, gamedb.ClassRoom)
	g.AddPath(room, other, "east", "west", "")
	guard, _ := g.Create("guard", gamedb.Props{gamedb.PropHealth: gamedb.Int(2), gamedb.PropContainSize: gamedb.Int(10)}, gamedb.ClassAgent)
	hero, _ := g.Create("hero", gamedb.Props{gamedb.PropContainSize: gamedb.Int(10)}, gamedb.ClassAgent)
	g.Move(guard, room)
	g.Move(hero, room)
	return world.New(g, world.DefaultRegistry(), events.NewBus(), world.Config{}), guard, hero
}

type countingPolicy struct{ n int }

func (c *countingPolicy) Act(*world.World, string) { c.n++ }

func TestRandomActs(t *testing.T) {
	w, guard, _ := newWorld(t)
	r := NewRandom(1, rand.NewSource(7))
	r.Verbs = []string{"go"}
	w.Locked(func(w *world.World) { r.Act(w, guard) })
	if loc, _ := w.Graph().Location(guard); loc != "forest_2" {
		t.Errorf("guard at %q, want forest_2", loc)
	}
}

func TestRandomRespectsProbability(t *testing.T) {
	w, guard, _ := newWorld(t)
	r := NewRandom(0.000001, rand.NewSource(1))
	r.Verbs = []string{"go"}
	w.Locked(func(w *world.World) { r.Act(w, guard) })
	if loc, _ := w.Graph().Location(guard); loc != "meadow_1" {
		t.Errorf("guard moved to %q", loc)
	}
}

const inlineScript = `
func Act(ctx map[string]any) string {
	if ctx["health"].(int) < 3 {
		return "say I am hurt"
	}
	return "say all is well"
}
`

func TestScriptedInline(t *testing.T) {
	w, guard, hero := newWorld(t)
	w.Graph().SetProp(guard, gamedb.PropScript, gamedb.Str(inlineScript))
	s := NewScripted("", nil)
	w.Locked(func(w *world.World) { s.Act(w, guard) })
	if got := w.Router().Drain(hero); got != `The guard says "I am hurt"` {
		t.Errorf("hero heard %q", got)
	}
	if len(s.scripts) != 1 {
		t.Errorf("cache holds %d scripts", len(s.scripts))
	}
	w.Locked(func(w *world.World) { s.Act(w, guard) })
	if len(s.scripts) != 1 {
		t.Error("script compiled twice")
	}
}

func TestScriptedFromFile(t *testing.T) {
	dir := t.TempDir()
	src := "import \"strings\"\n\nfunc Act(ctx map[string]any) string {\n\treturn strings.ToLower(\"WAVE\")\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "waver.yg"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	w, guard, hero := newWorld(t)
	w.Graph().SetProp(guard, gamedb.PropScript, gamedb.Str("waver.yg"))
	s := NewScripted(dir, nil)
	w.Locked(func(w *world.World) { s.Act(w, guard) })
	if got := w.Router().Drain(hero); got != "The guard waves." {
		t.Errorf("hero saw %q", got)
	}
}

func TestScriptedFallback(t *testing.T) {
	w, guard, _ := newWorld(t)
	fb := &countingPolicy{}
	s := NewScripted("", fb)
	w.Locked(func(w *world.World) { s.Act(w, guard) })
	w.Graph().SetProp(guard, gamedb.PropScript, gamedb.Str("func Act( {"))
	w.Locked(func(w *world.World) { s.Act(w, guard) })
	if fb.n != 2 {
		t.Errorf("fallback ran %d times, want 2", fb.n)
	}
}

func TestScriptPanicRecovered(t *testing.T) {
	w, guard, hero := newWorld(t)
	w.Graph().SetProp(guard, gamedb.PropScript, gamedb.Str(`func Act(ctx map[string]any) string { panic("nope") }`))
	s := NewScripted("", nil)
	w.Locked(func(w *world.World) { s.Act(w, guard) })
	if n := w.Router().Buffered(hero); n != 0 {
		t.Errorf("panicking script produced %d lines", n)
	}
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name, src string
		ok        bool
	}{
		{"valid", inlineScript, true},
		{"syntax error", "func Act(", false},
		{"missing Act", "func Other() {}", false},
		{"wrong signature", "func Act() int { return 1 }", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Compile(tt.src)
			if (err == nil) != tt.ok {
				t.Errorf("Compile: %v", err)
			}
			if err != nil && !strings.Contains(err.Error(), "compile") {
				t.Errorf("error %q lacks context", err)
			}
		})
	}
}
