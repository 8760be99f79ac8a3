// Package resolve binds free text from a command to entity ids near an
// actor.
package resolve

import (
	"sort"
	"strings"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
)

// Scope selects which entities around the actor are eligible matches.
type Scope uint8

const (
	// Carrying is what the actor holds.
	Carrying Scope = 1 << iota
	// SameLoc is everything in the actor's location.
	SameLoc
	// Path is the rooms reachable by one path edge from the actor's room.
	Path
	// Contains looks one level into containers already in scope.
	Contains
	// Others looks one level into containers and agents already in scope.
	Others
	// AllEntities is every live entity.
	AllEntities

	// All is the union of every flag.
	All = Carrying | SameLoc | Path | Contains | Others | AllEntities
	// Nearby is the default scope for most verbs.
	Nearby = Carrying | SameLoc
)

// Graph is the read-only view of the world the resolver needs.
type Graph interface {
	IDs() []string
	Location(id string) (string, bool)
	Contains(id string) []string
	Neighbors(room string) []string
	PathLabel(from, to string) string
	Desc(id string) string
	Names(id string) []string
	HasClass(id string, c gamedb.Class) bool
	RoomOf(id string) (string, bool)
}

// Candidates returns the ids eligible under scope, in sorted order. The
// actor itself is never a candidate.
func Candidates(g Graph, actor string, scope Scope) []string {
	set := make(map[string]bool)
	if scope&AllEntities != 0 {
		for _, id := range g.IDs() {
			set[id] = true
		}
		delete(set, gamedb.VoidID)
	}
	if scope&Carrying != 0 {
		for _, id := range g.Contains(actor) {
			set[id] = true
		}
	}
	loc, _ := g.Location(actor)
	if scope&SameLoc != 0 && loc != "" {
		for _, id := range g.Contains(loc) {
			set[id] = true
		}
	}
	if scope&Path != 0 {
		if room, ok := g.RoomOf(actor); ok {
			for _, id := range g.Neighbors(room) {
				set[id] = true
			}
		}
	}
	if scope&(Contains|Others) != 0 {
		var expand []string
		for id := range set {
			if g.HasClass(id, gamedb.ClassRoom) {
				continue
			}
			if g.HasClass(id, gamedb.ClassContainer) || (scope&Others != 0 && g.HasClass(id, gamedb.ClassAgent)) {
				expand = append(expand, id)
			}
		}
		for _, id := range expand {
			for _, inner := range g.Contains(id) {
				set[inner] = true
			}
		}
	}
	delete(set, actor)

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type match struct {
	id     string
	length int
}

// Resolve returns the ids in scope matching text. Matches against the
// display description (or its plural) come first, then matches against
// alternate names and, for rooms behind a path, the path label. Each group
// is ordered shortest match first, then by id length, then by id. An empty
// result means nothing matched.
func Resolve(g Graph, text, actor string, scope Scope) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil
	}
	room, _ := g.RoomOf(actor)

	var byDesc, byName []match
	for _, id := range Candidates(g, actor, scope) {
		desc := strings.ToLower(g.Desc(id))
		if strings.Contains(desc, text) || strings.Contains(Plural(desc), text) {
			byDesc = append(byDesc, match{id: id, length: len(desc)})
			continue
		}
		best := -1
		names := g.Names(id)
		if label := g.PathLabel(room, id); label != "" {
			names = append(append([]string(nil), names...), label)
		}
		for _, n := range names {
			n = strings.ToLower(n)
			if strings.Contains(n, text) && (best < 0 || len(n) < best) {
				best = len(n)
			}
		}
		if best >= 0 {
			byName = append(byName, match{id: id, length: best})
		}
	}
	order(byDesc)
	order(byName)

	seen := make(map[string]bool)
	var out []string
	for _, group := range [][]match{byDesc, byName} {
		for _, m := range group {
			if !seen[m.id] {
				seen[m.id] = true
				out = append(out, m.id)
			}
		}
	}
	return out
}

func order(ms []match) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].length != ms[j].length {
			return ms[i].length < ms[j].length
		}
		if len(ms[i].id) != len(ms[j].id) {
			return len(ms[i].id) < len(ms[j].id)
		}
		return ms[i].id < ms[j].id
	})
}

// Plural returns a naive English plural of a description's last word.
func Plural(desc string) string {
	switch {
	case desc == "":
		return desc
	case strings.HasSuffix(desc, "s"), strings.HasSuffix(desc, "x"),
		strings.HasSuffix(desc, "ch"), strings.HasSuffix(desc, "sh"):
		return desc + "es"
	case strings.HasSuffix(desc, "y") && len(desc) > 1 && !strings.ContainsRune("aeiou", rune(desc[len(desc)-2])):
		return desc[:len(desc)-1] + "ies"
	}
	return desc + "s"
}
