package world

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/router"
)

var healthWords = []string{
	"dead",
	"on the verge of death",
	"very weak",
	"weak",
	"ok",
	"good",
	"strong",
	"very strong",
	"nigh on invincible",
}

// HealthWord describes a health value.
func HealthWord(h int) string {
	if h < 0 {
		h = 0
	}
	if h >= len(healthWords) {
		h = len(healthWords) - 1
	}
	return healthWords[h]
}

func (w *World) health(id string) int {
	if v, ok := w.g.Prop(id, gamedb.PropHealth); ok {
		return v.AsInt()
	}
	return DefaultHealth
}

func properName(desc string) bool {
	r, _ := utf8.DecodeRuneInString(desc)
	return unicode.IsUpper(r)
}

func (w *World) desc(id string) string {
	if d := w.g.Desc(id); d != "" {
		return d
	}
	return id
}

// refer names id from viewer's point of view: "you", a proper name, or
// "the <desc>".
func (w *World) refer(viewer, id string) string {
	return w.referAs(viewer, id, "")
}

// referAs is refer with a description captured earlier, used when the
// entity may have changed since the action happened.
func (w *World) referAs(viewer, id, d string) string {
	if id != "" && id == viewer {
		return "you"
	}
	if d == "" {
		d = w.desc(id)
	}
	if properName(d) {
		return d
	}
	return "the " + d
}

// indefinite names id with an indefinite article.
func (w *World) indefinite(id string) string {
	d := w.desc(id)
	if properName(d) {
		return d
	}
	if strings.ContainsRune("aeiou", unicode.ToLower(rune(d[0]))) {
		return "an " + d
	}
	return "a " + d
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// listing joins items as "a, b and c".
func listing(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// fill expands a narration template. {N} names act.Actors[N] for viewer;
// {key} substitutes act.Extra[key].
func (w *World) fill(tmpl, viewer string, act router.Action) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(tmpl, '{')
		if i < 0 {
			b.WriteString(tmpl)
			break
		}
		j := strings.IndexByte(tmpl[i:], '}')
		if j < 0 {
			b.WriteString(tmpl)
			break
		}
		b.WriteString(tmpl[:i])
		key := tmpl[i+1 : i+j]
		if n, err := strconv.Atoi(key); err == nil {
			if n < len(act.Actors) {
				b.WriteString(w.referAs(viewer, act.Actors[n], capturedName(act, n)))
			}
		} else if v, ok := act.Extra[key]; ok {
			fmt.Fprint(&b, v)
		}
		tmpl = tmpl[i+j+1:]
	}
	return capitalize(b.String())
}

// namesKey holds the actors' descriptions as they were when the action
// began.
const namesKey = "names"

func capturedName(act router.Action, n int) string {
	names, _ := act.Extra[namesKey].([]string)
	if n < len(names) {
		return names[n]
	}
	return ""
}

// format renders an action through its verb. It is the router formatter.
func (w *World) format(viewer string, act router.Action) string {
	if act.Caller == "" {
		return ""
	}
	v := w.registry.Lookup(act.Caller)
	if v == nil {
		return ""
	}
	return v.FormatObservation(w, viewer, act)
}

// RoomText is what an agent sees on looking around.
func (w *World) RoomText(agent string) string {
	room, ok := w.g.RoomOf(agent)
	if !ok {
		return "You are nowhere."
	}
	loc, _ := w.g.Location(agent)
	var parts []string
	if loc != room {
		parts = append(parts, fmt.Sprintf("You are in %s.", w.refer(agent, loc)))
	}
	parts = append(parts, w.g.Describe(room, room, false))

	var exits []string
	for _, to := range w.g.Neighbors(room) {
		exits = append(exits, w.g.Describe(to, room, false))
	}
	if len(exits) > 0 {
		parts = append(parts, capitalize("there's "+listing(exits)+"."))
	}

	var things, agents []string
	for _, id := range w.g.Contains(room) {
		switch {
		case id == agent:
		case w.IsAlive(id):
			agents = append(agents, w.refer(agent, id))
		default:
			things = append(things, w.indefinite(id))
		}
	}
	if len(things) > 0 {
		parts = append(parts, "You see "+listing(things)+" here.")
	}
	switch len(agents) {
	case 0:
	case 1:
		parts = append(parts, capitalize(agents[0])+" is here.")
	default:
		parts = append(parts, capitalize(listing(agents))+" are here.")
	}
	return strings.Join(parts, " ")
}

// InventoryText lists what an agent carries, wears and wields.
func (w *World) InventoryText(agent string) string {
	var carried, worn, wielded []string
	for _, id := range w.g.Contains(agent) {
		switch w.g.StrProp(id, gamedb.PropEquipped) {
		case equipWorn:
			worn = append(worn, w.indefinite(id))
		case equipWielded:
			wielded = append(wielded, w.indefinite(id))
		default:
			carried = append(carried, w.indefinite(id))
		}
	}
	var parts []string
	if len(carried) == 0 {
		parts = append(parts, "You are carrying nothing.")
	} else {
		parts = append(parts, "You are carrying "+listing(carried)+".")
	}
	if len(worn) > 0 {
		parts = append(parts, "You are wearing "+listing(worn)+".")
	}
	if len(wielded) > 0 {
		parts = append(parts, "You are wielding "+listing(wielded)+".")
	}
	return strings.Join(parts, " ")
}

// ExamineText describes one entity as seen by agent.
func (w *World) ExamineText(agent, id string) string {
	room, _ := w.g.RoomOf(agent)
	if w.g.HasClass(id, gamedb.ClassRoom) {
		if id == room {
			return w.g.Describe(id, id, false)
		}
		return capitalize(w.g.Describe(id, room, false)) + "."
	}
	desc := w.g.StrProp(id, gamedb.PropDesc)
	if desc == "" {
		desc = capitalize(w.indefinite(id)) + "."
	}
	parts := []string{desc}
	if extra := w.g.StrProp(id, gamedb.PropExtraDesc); extra != "" {
		parts = append(parts, extra)
	}
	if w.IsAlive(id) {
		parts = append(parts, fmt.Sprintf("%s looks %s.", capitalize(w.refer(agent, id)), HealthWord(w.health(id))))
		var held []string
		for _, c := range w.g.Contains(id) {
			held = append(held, w.indefinite(c))
		}
		if len(held) > 0 {
			parts = append(parts, "They are carrying "+listing(held)+".")
		}
		return strings.Join(parts, " ")
	}
	if w.g.HasClass(id, gamedb.ClassContainer) {
		var inside []string
		for _, c := range w.g.Contains(id) {
			inside = append(inside, w.indefinite(c))
		}
		surface := w.g.StrProp(id, gamedb.PropSurfaceType)
		if surface == "" {
			surface = "in"
		}
		if len(inside) == 0 {
			parts = append(parts, fmt.Sprintf("There's nothing %s it.", surface))
		} else {
			parts = append(parts, fmt.Sprintf("%s it you see %s.", capitalize(surface), listing(inside)))
		}
	}
	return strings.Join(parts, " ")
}
