package gamedb

import (
	"errors"
	"testing"
)

func twoRooms(t *testing.T) (*Graph, string, string) {
	t.Helper()
	g := NewGraph()
	a, _ := g.Create("kitchen", Props{PropDesc: Str("A smoky kitchen.")}, ClassRoom)
	b, _ := g.Create("pantry", Props{PropDesc: Str("A cramped pantry.")}, ClassRoom)
	if err := g.AddPath(a, b, "north", "south", ""); err != nil {
		t.Fatalf("add path: %v", err)
	}
	return g, a, b
}

func TestAddPathIdempotent(t *testing.T) {
	g, a, b := twoRooms(t)
	g.AddPath(a, b, "up", "down", "")
	if got := g.PathLabel(a, b); got != "north" {
		t.Errorf("re-adding overwrote label: %q", got)
	}
	if got := g.PathLabel(b, a); got != "south" {
		t.Errorf("reverse label = %q", got)
	}
	if n := g.Neighbors(a); len(n) != 1 || n[0] != b {
		t.Errorf("neighbors = %v", n)
	}
	if to, ok := g.PathByLabel(a, "North"); !ok || to != b {
		t.Errorf("PathByLabel = %q, %v", to, ok)
	}
}

func TestAddPathOneWay(t *testing.T) {
	g := NewGraph()
	a, _ := g.Create("ledge", nil, ClassRoom)
	b, _ := g.Create("pit", nil, ClassRoom)
	g.AddPath(a, b, "down", "", "")
	if _, ok := g.PathBetween(b, a); ok {
		t.Error("one-way path created a reverse edge")
	}
}

func TestLockUnlockSymmetric(t *testing.T) {
	g, a, b := twoRooms(t)
	p, _ := g.PathBetween(a, b)

	if err := g.Lock(a, b, "key1"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !g.IsLocked(a, b) || !g.IsLocked(b, a) {
		t.Fatal("lock must apply to both directions")
	}
	if got := g.Describe(b, a, false); got != p.LockedDesc {
		t.Errorf("describe while locked = %q, want %q", got, p.LockedDesc)
	}
	if err := g.Unlock(a, b, "wrong"); !errors.Is(err, ErrWrongKey) {
		t.Errorf("unlock with wrong key: %v", err)
	}
	if err := g.Unlock(b, a, "key1"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if g.IsLocked(a, b) || g.IsLocked(b, a) {
		t.Error("unlock must apply to both directions")
	}
	if got := g.Describe(b, a, false); got != p.UnlockedDesc {
		t.Errorf("describe after unlock = %q, want %q", got, p.UnlockedDesc)
	}
	if err := g.Lock(a, "nowhere", "key1"); !errors.Is(err, ErrNoPath) {
		t.Errorf("lock missing path: %v", err)
	}
}

func TestDescribe(t *testing.T) {
	g, a, b := twoRooms(t)
	g.SetProp(a, PropExtraDesc, Str("Pots hang from hooks."))

	tests := []struct {
		name      string
		target    string
		from      string
		fullLabel bool
		want      string
	}{
		{"room from itself", a, a, false, "A smoky kitchen. Pots hang from hooks."},
		{"path template", b, a, false, "a path to the north"},
		{"full label", b, a, true, "north"},
		{"no edge", a, "void", false, "kitchen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Describe(tt.target, tt.from, tt.fullLabel); got != tt.want {
				t.Errorf("Describe = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFollow(t *testing.T) {
	g := NewGraph()
	a, _ := g.Create("cat", nil, ClassAgent)
	b, _ := g.Create("mouse", nil, ClassAgent)
	c, _ := g.Create("dog", nil, ClassAgent)

	g.Follow(a, b)
	g.Follow(c, b)
	if f := g.Followers(b); len(f) != 2 {
		t.Errorf("followers = %v", f)
	}
	g.Follow(a, c)
	if g.Following(a) != c {
		t.Errorf("follow did not replace target")
	}
	if f := g.Followers(b); len(f) != 1 || f[0] != c {
		t.Errorf("followers after retarget = %v", f)
	}
	if prev := g.Unfollow(c); prev != b {
		t.Errorf("unfollow returned %q", prev)
	}
	if err := g.Follow(a, a); err == nil {
		t.Error("following yourself should fail")
	}
}
