package world

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
)

type scriptedPolicy struct {
	line  string
	calls int
}

func (p *scriptedPolicy) Act(w *World, agent string) {
	p.calls++
	w.Do(agent, p.line)
}

type panicPolicy struct{}

func (panicPolicy) Act(*World, string) { panic("bad policy") }

type countingPopulator struct{ spawned []string }

func (c *countingPopulator) SpawnReplacementNPC(w *World) (string, error) {
	id, err := w.Graph().Create("rat", gamedb.Props{gamedb.PropSpeed: gamedb.Int(1)}, gamedb.ClassAgent)
	if err != nil {
		return "", err
	}
	rooms := w.Graph().Rooms()
	if err := w.Graph().Move(id, rooms[0]); err != nil {
		return "", fmt.Errorf("place %s: %w", id, err)
	}
	c.spawned = append(c.spawned, id)
	return id, nil
}

func TestTickRunsPolicies(t *testing.T) {
	f := newFixture(t, Config{})
	p := &scriptedPolicy{line: `say "grr"`}
	f.w.SetDefaultPolicy(p)
	f.w.SpawnPlayer("p1")
	f.drain(hero)

	f.w.Tick()
	if p.calls != 1 {
		t.Fatalf("policy ran %d times, want once for the orc", p.calls)
	}
	if got := f.drain(hero); got != `The orc says "grr"` {
		t.Errorf("player heard %q", got)
	}
	if f.w.Ticks() != 1 {
		t.Errorf("ticks = %d", f.w.Ticks())
	}
}

func TestTickRecoversPolicyPanic(t *testing.T) {
	f := newFixture(t, Config{})
	f.w.Locked(func(w *World) { w.SetPolicy(orc, panicPolicy{}) })
	p := &scriptedPolicy{line: "look"}
	f.w.SetDefaultPolicy(p)
	f.w.Tick()
	if p.calls != 1 {
		t.Errorf("other NPCs should still act, got %d calls", p.calls)
	}
}

func TestFrozenWorldDoesNotTick(t *testing.T) {
	f := newFixture(t, Config{})
	f.w.Freeze()
	f.w.Tick()
	if f.w.Ticks() != 0 {
		t.Error("frozen world ticked")
	}
	f.w.Thaw()
	f.w.Tick()
	if f.w.Ticks() != 1 {
		t.Error("thawed world did not tick")
	}
}

func TestRepopulate(t *testing.T) {
	f := newFixture(t, Config{InitialNPCs: 2})
	pop := &countingPopulator{}
	f.w.SetPopulator(pop)
	f.w.Locked(func(w *World) { w.Die(orc) })
	f.w.Tick()
	if len(pop.spawned) != 1 {
		t.Fatalf("spawned %v, want one replacement", pop.spawned)
	}
	if n := len(f.w.LiveNPCs()); n != 2 {
		t.Errorf("live NPCs = %d", n)
	}
	f.w.Tick()
	if len(pop.spawned) != 1 {
		t.Errorf("population already full, spawned %v", pop.spawned)
	}
}

func TestRepopulateOnePerTick(t *testing.T) {
	f := newFixture(t, Config{InitialNPCs: 4})
	pop := &countingPopulator{}
	f.w.SetPopulator(pop)
	f.w.Tick()
	if len(pop.spawned) != 1 {
		t.Fatalf("first tick spawned %v, want one replacement", pop.spawned)
	}
	f.w.Tick()
	if len(pop.spawned) != 2 {
		t.Fatalf("second tick spawned %v, want two in total", pop.spawned)
	}
	f.w.Tick()
	if len(pop.spawned) != 2 {
		t.Errorf("population already full, spawned %v", pop.spawned)
	}
	if n := len(f.w.LiveNPCs()); n != 4 {
		t.Errorf("live NPCs = %d, want 4", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := f.w.Run(ctx, 5*time.Millisecond); err == nil {
		t.Fatal("Run returned nil after cancel")
	}
	if f.w.Ticks() == 0 {
		t.Error("no ticks ran")
	}
}

type recordingObserver struct {
	verbs map[string]int
	ticks int
}

func (o *recordingObserver) CommandDone(verb string, ok bool, d time.Duration) { o.verbs[verb]++ }
func (o *recordingObserver) TickDone(d time.Duration)                          { o.ticks++ }

func TestObserverLabelsAreBounded(t *testing.T) {
	f := newFixture(t, Config{})
	obs := &recordingObserver{verbs: map[string]int{}}
	f.w.SetObserver(obs)
	for _, line := range []string{"qwzx1", "qwzx2 the orc", "zzz-anything", "take sword", "help"} {
		f.w.Execute(hero, line)
	}
	f.w.Tick()

	want := map[string]int{UnknownVerb: 3, "get": 1, "help": 1}
	if len(obs.verbs) != len(want) {
		t.Fatalf("observer labels = %v, want %v", obs.verbs, want)
	}
	for verb, n := range want {
		if obs.verbs[verb] != n {
			t.Errorf("label %q counted %d, want %d", verb, obs.verbs[verb], n)
		}
	}
	if obs.ticks != 1 {
		t.Errorf("ticks observed = %d", obs.ticks)
	}
}
