package gamedb

import (
	"fmt"
	"sort"
	"strings"
)

// AddPath creates the edges a→b labelled labelA and b→a labelled labelB.
// Each direction is created only if missing; an empty label skips that
// direction. lockedWith names the key entity, if any.
func (g *Graph) AddPath(a, b, labelA, labelB, lockedWith string) error {
	if !g.Exists(a) || !g.Exists(b) {
		return fmt.Errorf("gamedb: add path %s->%s: %w", a, b, ErrNotFound)
	}
	if labelA != "" {
		g.addEdge(a, b, labelA, lockedWith)
	}
	if labelB != "" {
		g.addEdge(b, a, labelB, lockedWith)
	}
	return nil
}

func (g *Graph) addEdge(from, to, label, lockedWith string) {
	out, ok := g.paths[from]
	if !ok {
		out = make(map[string]*Path)
		g.paths[from] = out
	}
	if _, ok := out[to]; ok {
		return
	}
	out[to] = &Path{
		Label:        label,
		LockedDesc:   fmt.Sprintf("the path to the %s is locked", label),
		UnlockedDesc: fmt.Sprintf("the path to the %s is unlocked", label),
		LockedWith:   lockedWith,
	}
}

// SetPath replaces the edge from→to wholesale. Restore and builders use it.
func (g *Graph) SetPath(from, to string, p Path) error {
	if !g.Exists(from) || !g.Exists(to) {
		return fmt.Errorf("gamedb: set path %s->%s: %w", from, to, ErrNotFound)
	}
	out, ok := g.paths[from]
	if !ok {
		out = make(map[string]*Path)
		g.paths[from] = out
	}
	cp := p
	out[to] = &cp
	return nil
}

// PathBetween returns a copy of the edge from→to.
func (g *Graph) PathBetween(from, to string) (Path, bool) {
	p, ok := g.paths[from][to]
	if !ok {
		return Path{}, false
	}
	return *p, true
}

// Lock locks both directions between a and b with key. An edge already
// bound to a different key refuses.
func (g *Graph) Lock(a, b, key string) error {
	return g.setLocked(a, b, key, true)
}

// Unlock is the inverse of Lock.
func (g *Graph) Unlock(a, b, key string) error {
	return g.setLocked(a, b, key, false)
}

func (g *Graph) setLocked(a, b, key string, locked bool) error {
	fwd, ok := g.paths[a][b]
	if !ok {
		return fmt.Errorf("gamedb: lock %s->%s: %w", a, b, ErrNoPath)
	}
	back := g.paths[b][a]
	for _, p := range []*Path{fwd, back} {
		if p != nil && p.LockedWith != "" && p.LockedWith != key {
			return fmt.Errorf("gamedb: lock %s->%s with %s: %w", a, b, key, ErrWrongKey)
		}
	}
	for _, p := range []*Path{fwd, back} {
		if p == nil {
			continue
		}
		p.LockedWith = key
		p.Locked = locked
		if locked {
			p.ExamineDesc = p.LockedDesc
		} else {
			p.ExamineDesc = p.UnlockedDesc
		}
	}
	return nil
}

// IsLocked reports whether the edge a→b exists and is locked.
func (g *Graph) IsLocked(a, b string) bool {
	p, ok := g.paths[a][b]
	return ok && p.Locked
}

// Neighbors returns the sorted rooms reachable from room by one edge.
func (g *Graph) Neighbors(room string) []string {
	out := make([]string, 0, len(g.paths[room]))
	for to := range g.paths[room] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// PathLabel returns the label of the edge from→to.
func (g *Graph) PathLabel(from, to string) string {
	if p, ok := g.paths[from][to]; ok {
		return p.Label
	}
	return ""
}

// PathByLabel finds the room reached from room by the edge labelled label.
func (g *Graph) PathByLabel(room, label string) (string, bool) {
	for _, to := range g.Neighbors(room) {
		if strings.EqualFold(g.paths[room][to].Label, label) {
			return to, true
		}
	}
	return "", false
}

// Describe describes a as seen from b. A room seen from itself yields its
// desc and extra_desc. Otherwise the edge b→a yields its active examine
// text, else "a path to the <label>", or the bare label when fullLabel is
// set or the edge asks for it.
func (g *Graph) Describe(a, b string, fullLabel bool) string {
	if a == b {
		desc := g.StrProp(a, PropDesc)
		if desc == "" {
			desc = g.Desc(a)
		}
		if extra := g.StrProp(a, PropExtraDesc); extra != "" {
			desc += " " + extra
		}
		return desc
	}
	p, ok := g.paths[b][a]
	if !ok {
		return g.Desc(a)
	}
	if p.ExamineDesc != "" {
		return p.ExamineDesc
	}
	if fullLabel || p.FullLabel {
		return p.Label
	}
	return "a path to the " + p.Label
}

// detachPaths removes every edge into or out of id.
func (g *Graph) detachPaths(id string) {
	delete(g.paths, id)
	for from, out := range g.paths {
		delete(out, id)
		if len(out) == 0 {
			delete(g.paths, from)
		}
	}
}
