package world

import (
	"strings"
	"testing"

	"github.com/crystal-mush/graphworld/pkg/events"
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/router"
)

// fixture ids follow creation order: hall_1, yard_2, hero_3, orc_4,
// sword_5, chest_6, coin_7, apple_8, key_9.
type fixture struct {
	w   *World
	bus *events.Bus
	g   *gamedb.Graph
}

const (
	hall  = "hall_1"
	yard  = "yard_2"
	hero  = "hero_3"
	orc   = "orc_4"
	sword = "sword_5"
	chest = "chest_6"
	coin  = "coin_7"
	apple = "apple_8"
	key   = "key_9"
)

func newFixture(t *testing.T, cfg Config) fixture {
	t.Helper()
	g := gamedb.NewGraph()
	g.Create("hall", gamedb.Props{gamedb.PropDesc: gamedb.Str("A drafty hall.")}, gamedb.ClassRoom)
	g.Create("yard", nil, gamedb.ClassRoom)
	if err := g.AddPath(hall, yard, "north", "south", ""); err != nil {
		t.Fatalf("add path: %v", err)
	}
	agent := func(desc string, health int) {
		g.Create(desc, gamedb.Props{
			gamedb.PropContainSize: gamedb.Int(20),
			gamedb.PropSpeed:       gamedb.Int(5),
			gamedb.PropHealth:      gamedb.Int(health),
		}, gamedb.ClassAgent)
	}
	agent("hero", 6)
	agent("orc", 2)
	g.Create("sword", gamedb.Props{gamedb.PropDamage: gamedb.Int(3)}, gamedb.ClassObject, gamedb.ClassWieldable)
	g.Create("chest", gamedb.Props{gamedb.PropContainSize: gamedb.Int(10)}, gamedb.ClassObject, gamedb.ClassContainer)
	g.Create("coin", nil, gamedb.ClassObject)
	g.Create("apple", nil, gamedb.ClassObject, gamedb.ClassFood)
	g.Create("key", nil, gamedb.ClassObject)
	for _, id := range []string{hero, orc, sword, chest, key} {
		if err := g.Move(id, hall); err != nil {
			t.Fatalf("move %s: %v", id, err)
		}
	}
	g.Move(coin, chest)
	g.Move(apple, hero)

	bus := events.NewBus()
	return fixture{w: New(g, DefaultRegistry(), bus, cfg), bus: bus, g: g}
}

func (f fixture) drain(agent string) string {
	return f.w.Router().Drain(agent)
}

func (f fixture) run(t *testing.T, actor, line string, want bool) {
	t.Helper()
	if got := f.w.Execute(actor, line); got != want {
		t.Fatalf("Execute(%s, %q) = %v, want %v; narration %q", actor, line, got, want, f.drain(actor))
	}
}

func TestGetAndDrop(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(t, hero, "get sword", true)
	if loc, _ := f.g.Location(sword); loc != hero {
		t.Fatalf("sword at %q", loc)
	}
	if got := f.drain(hero); got != "You get the sword." {
		t.Errorf("actor narration = %q", got)
	}
	if got := f.drain(orc); got != "The hero gets the sword." {
		t.Errorf("bystander narration = %q", got)
	}

	f.run(t, hero, "drop the sword", true)
	if loc, _ := f.g.Location(sword); loc != hall {
		t.Errorf("dropped sword at %q", loc)
	}
	f.run(t, hero, "drop sword", false)
	if got := f.drain(hero); !strings.Contains(got, "You don't see sword here.") {
		t.Errorf("dropping what you lack = %q", got)
	}
}

func TestGetFromContainer(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(t, hero, "get coin from chest", true)
	if loc, _ := f.g.Location(coin); loc != hero {
		t.Fatalf("coin at %q", loc)
	}
	f.run(t, hero, "put coin in chest", true)
	if loc, _ := f.g.Location(coin); loc != chest {
		t.Errorf("coin at %q after put", loc)
	}
	if got := f.drain(orc); !strings.Contains(got, "The hero puts the coin in the chest.") {
		t.Errorf("bystander narration = %q", got)
	}
}

func TestLockedPath(t *testing.T) {
	f := newFixture(t, Config{})
	if err := f.g.Lock(hall, yard, key); err != nil {
		t.Fatalf("lock: %v", err)
	}
	f.run(t, hero, "go north", false)
	if got := f.drain(hero); got != "The path to the north is locked." {
		t.Errorf("locked narration = %q", got)
	}
	if loc, _ := f.g.Location(hero); loc != hall {
		t.Fatalf("hero moved through a locked path to %q", loc)
	}

	f.run(t, hero, "get key", true)
	f.run(t, hero, "unlock north with key", true)
	if f.g.IsLocked(hall, yard) || f.g.IsLocked(yard, hall) {
		t.Fatal("unlock verb left the path locked")
	}
	f.drain(hero)
	f.drain(orc)

	f.run(t, hero, "n", true)
	if loc, _ := f.g.Location(hero); loc != yard {
		t.Fatalf("hero at %q, want yard", loc)
	}
	if got := f.drain(hero); !strings.HasPrefix(got, "You go north.\n") {
		t.Errorf("arrival narration = %q", got)
	}
	if got := f.drain(orc); got != "The hero leaves towards the north." {
		t.Errorf("departure narration = %q", got)
	}

	f.run(t, hero, "lock south with key", true)
	if !f.g.IsLocked(yard, hall) {
		t.Error("lock verb did not lock")
	}
}

func TestFollowersTravelTogether(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(t, orc, "follow hero", true)
	if got := f.drain(hero); got != "The orc starts following you." {
		t.Errorf("target narration = %q", got)
	}
	f.run(t, hero, "go north", true)
	if loc, _ := f.g.Location(orc); loc != yard {
		t.Errorf("follower at %q", loc)
	}
	f.run(t, orc, "unfollow", true)
	if f.g.Following(orc) != "" {
		t.Error("unfollow kept the edge")
	}
}

func TestUnknownVerb(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(t, hero, "fly", false)
	if got := f.drain(hero); got != "You can't fly." {
		t.Errorf("narration = %q", got)
	}

	var claimed []string
	f.w.OnUnhandled(func(verb string, args []string, actor string) bool {
		claimed = append(claimed, verb)
		return verb == "fly"
	})
	f.run(t, hero, "fly away", true)
	if len(claimed) != 1 || f.w.Router().Buffered(hero) != 0 {
		t.Errorf("callback chain: claimed %v, buffered %d", claimed, f.w.Router().Buffered(hero))
	}
}

func TestSuggestVerb(t *testing.T) {
	f := newFixture(t, Config{SuggestVerbs: true})
	f.run(t, hero, "giv coin to orc", false)
	if got := f.drain(hero); got != `You can't giv. Did you mean "give"?` {
		t.Errorf("narration = %q", got)
	}
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"n", "go north"},
		{"  S ", "go south"},
		{"i", "inventory"},
		{`"hello there`, `say "hello there`},
		{"look at the sword", "examine the sword"},
		{"Look Chest", "examine Chest"},
		{"look around", "look"},
		{"look  at ", "look"},
		{"look ", "look"},
		{"get sword", "get sword"},
	}
	for _, tt := range tests {
		if got := rewrite(tt.in); got != tt.want {
			t.Errorf("rewrite(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGiveAndSteal(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(t, hero, "give apple to orc", true)
	if loc, _ := f.g.Location(apple); loc != orc {
		t.Fatalf("apple at %q", loc)
	}
	if got := f.drain(orc); got != "The hero gives you the apple." {
		t.Errorf("recipient narration = %q", got)
	}
	f.run(t, hero, "steal apple from orc", true)
	if loc, _ := f.g.Location(apple); loc != hero {
		t.Errorf("apple at %q after steal", loc)
	}
}

func TestEat(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(t, hero, "eat apple", true)
	if got := f.g.IntProp(hero, gamedb.PropHealth); got != 7 {
		t.Errorf("health = %d, want 7", got)
	}
	if !f.g.IsPending(apple) {
		t.Error("eaten apple should be queued for deletion")
	}
	f.run(t, hero, "eat apple", false)
	f.run(t, hero, "eat sword", false)
}

func TestWieldHitAndDeath(t *testing.T) {
	f := newFixture(t, Config{DecayTicks: 2})
	f.run(t, hero, "get sword", true)
	f.run(t, hero, "wield sword", true)
	if got := f.g.IntProp(hero, gamedb.PropDamage); got != 3 {
		t.Fatalf("damage = %d, want 3", got)
	}
	f.drain(hero)

	f.run(t, hero, "hit orc", true)
	if got := f.drain(hero); got != "You hit the orc.\nThe orc died!" {
		t.Errorf("narration = %q", got)
	}
	if f.w.IsAlive(orc) {
		t.Fatal("orc survived")
	}
	if !f.g.HasClass(orc, gamedb.ClassContainer) || !f.g.BoolProp(orc, gamedb.PropDead) {
		t.Error("corpse should be a dead container")
	}
	f.run(t, orc, "look", false)
	if got := f.drain(orc); !strings.Contains(got, "You are dead.") {
		t.Errorf("dead actor narration = %q", got)
	}

	for i := 0; i < 2; i++ {
		f.w.Tick()
	}
	if !f.g.Exists(orc) {
		t.Fatal("corpse decayed too early")
	}
	f.w.Tick()
	if f.g.Exists(orc) {
		t.Fatal("corpse should have disintegrated")
	}
	if got := f.drain(hero); !strings.Contains(got, "disintegrates") {
		t.Errorf("decay narration = %q", got)
	}

	f.run(t, hero, "remove sword", true)
	if got := f.g.IntProp(hero, gamedb.PropDamage); got != 0 {
		t.Errorf("damage after remove = %d", got)
	}
}

func TestSpeech(t *testing.T) {
	f := newFixture(t, Config{})
	g := f.g
	g.Create("goblin", gamedb.Props{gamedb.PropContainSize: gamedb.Int(5)}, gamedb.ClassAgent)
	g.Move("goblin_10", hall)

	f.run(t, hero, `"hello`, true)
	if got := f.drain(hero); got != `You say "hello"` {
		t.Errorf("speaker = %q", got)
	}
	if got := f.drain(orc); got != `The hero says "hello"` {
		t.Errorf("listener = %q", got)
	}
	f.drain("goblin_10")

	f.run(t, hero, `whisper orc "the key is hidden"`, true)
	if got := f.drain(orc); got != `The hero whispers to you "the key is hidden"` {
		t.Errorf("whisper target = %q", got)
	}
	if got := f.drain("goblin_10"); got != "The hero whispers something to the orc." {
		t.Errorf("whisper bystander = %q", got)
	}
	log := f.w.Router().RoomLog(hall)
	if len(log) != 2 || log[0].Caller != "say" {
		t.Errorf("room log = %+v", log)
	}
}

func TestPrivateVerbs(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(t, hero, "inventory", true)
	if got := f.drain(hero); got != "You are carrying an apple." {
		t.Errorf("inventory = %q", got)
	}
	f.run(t, hero, "health", true)
	if got := f.drain(hero); got != "You are feeling strong." {
		t.Errorf("health = %q", got)
	}
	f.run(t, hero, "look", true)
	got := f.drain(hero)
	for _, want := range []string{"A drafty hall.", "There's a path to the north.", "You see a chest, a key and a sword here.", "The orc is here."} {
		if !strings.Contains(got, want) {
			t.Errorf("look = %q, missing %q", got, want)
		}
	}
	f.run(t, hero, "look at chest", true)
	if got := f.drain(hero); !strings.Contains(got, "In it you see a coin.") {
		t.Errorf("look at chest = %q", got)
	}
	f.run(t, hero, "examine chest", true)
	if got := f.drain(hero); !strings.Contains(got, "In it you see a coin.") {
		t.Errorf("examine = %q", got)
	}
	if !f.g.BoolProp(chest, gamedb.PropExamined) {
		t.Error("examine should mark the chest")
	}
	if n := f.w.Router().Buffered(orc); n != 0 {
		t.Errorf("bystander received %d private lines", n)
	}
}

func TestPossibleActions(t *testing.T) {
	f := newFixture(t, Config{})
	var acts []string
	f.w.Locked(func(w *World) { acts = w.PossibleActions(hero, nil) })
	has := func(s string) bool {
		for _, a := range acts {
			if a == s {
				return true
			}
		}
		return false
	}
	for _, want := range []string{"get sword", "get coin", "go north", "hit orc", "eat apple", "give apple to orc", "put apple in chest", "look"} {
		if !has(want) {
			t.Errorf("missing %q in %v", want, acts)
		}
	}
	for _, bad := range []string{"drop sword", "wield sword", "go south", "get apple"} {
		if has(bad) {
			t.Errorf("unexpected %q", bad)
		}
	}

	f.w.Locked(func(w *World) { acts = w.PossibleActions(hero, []string{"go"}) })
	if len(acts) != 1 || acts[0] != "go north" {
		t.Errorf("restricted actions = %v", acts)
	}
	for _, a := range []string{"get sword", "give apple to orc"} {
		f.run(t, hero, a, true)
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	f := newFixture(t, Config{})
	f.w.Registry().Register(&verbDef{
		name: "explode",
		apply: func(*World, []string, *router.Action) ([]router.Action, error) {
			panic("boom")
		},
	})
	f.run(t, hero, "explode", false)
	if got := f.drain(hero); got != "Something went wrong." {
		t.Errorf("narration = %q", got)
	}
}

func TestReservedCommands(t *testing.T) {
	f := newFixture(t, Config{})
	f.run(t, hero, "map", true)
	if got := f.drain(hero); !strings.Contains(got, "hall [north: yard]") {
		t.Errorf("map = %q", got)
	}
	f.run(t, hero, "fogmap", true)
	if got := f.drain(hero); got != "hall [north: ?]" {
		t.Errorf("fogmap = %q", got)
	}
	f.run(t, hero, "commit suicide", true)
	if f.w.IsAlive(hero) {
		t.Error("suicide did not kill")
	}
}
