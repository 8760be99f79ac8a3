package world

import (
	"fmt"
	"strings"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/resolve"
	"github.com/crystal-mush/graphworld/pkg/router"
)

// goVerb moves an agent along a path edge. Followers standing in the room
// it leaves go with it.
type goVerb struct{}

func (goVerb) Name() string   { return "go" }
func (goVerb) Arities() []int { return []int{1} }

func (goVerb) ValidArgs(w *World, args []string) bool {
	return len(args) == 2 && w.IsAlive(args[0]) && goCheck(w, args[0], args[1]) == ""
}

func goCheck(w *World, actor, to string) string {
	from, ok := w.g.RoomOf(actor)
	if !ok {
		return "You can't go anywhere."
	}
	p, ok := w.g.PathBetween(from, to)
	if !ok || !w.g.HasClass(to, gamedb.ClassRoom) {
		return "You can't go that way."
	}
	if p.Locked {
		return capitalize(p.LockedDesc) + "."
	}
	return ""
}

func (goVerb) ParseTextToArgs(w *World, actor string, tokens []string) ([]string, string, bool) {
	text := phrase(tokens)
	if strings.HasPrefix(text, "to ") {
		text = phrase(strings.Fields(text)[1:])
	}
	if text == "" {
		return nil, "Go where?", false
	}
	room, _ := w.g.RoomOf(actor)
	if to, ok := w.g.PathByLabel(room, text); ok {
		return []string{actor, to}, "", true
	}
	for _, id := range resolve.Resolve(w.g, text, actor, resolve.Path) {
		if w.g.HasClass(id, gamedb.ClassRoom) {
			return []string{actor, id}, "", true
		}
	}
	return nil, "You can't go that way.", false
}

func (goVerb) CanonicalForm(w *World, args []string) string {
	return "go " + w.argText(args[0], resolve.Path, args[1])
}

func (goVerb) Handle(w *World, args []string) ([]router.Action, bool) {
	actor, to := args[0], args[1]
	if reason := goCheck(w, actor, to); reason != "" {
		w.Tell(actor, reason)
		return nil, false
	}
	from, _ := w.g.RoomOf(actor)
	acts, err := w.travel(actor, from, to)
	if err != nil {
		w.Tell(actor, "You can't go that way.")
		return nil, false
	}
	for _, f := range w.g.Followers(actor) {
		if !w.IsAlive(f) {
			continue
		}
		if loc, _ := w.g.Location(f); loc != from {
			continue
		}
		more, err := w.travel(f, from, to)
		if err != nil {
			continue
		}
		acts = append(acts, more...)
	}
	return acts, true
}

// travel moves agent from one room to the next and returns the departure
// and arrival narration.
func (w *World) travel(agent, from, to string) ([]router.Action, error) {
	if err := w.g.Move(agent, to); err != nil {
		return nil, err
	}
	returning := w.visit(agent, to)
	w.lastRoom[agent] = from
	label := w.g.PathLabel(from, to)
	leave := router.Action{
		Caller:  "go",
		RoomID:  from,
		Actors:  []string{agent, to},
		Extra:   map[string]any{"phase": "leave", "label": label},
		Exclude: []string{agent},
	}
	leave.Text = w.fill("{0} leaves towards the {label}.", "", leave)
	arrive := router.Action{
		Caller: "go",
		RoomID: to,
		Actors: []string{agent, from},
		Extra:  map[string]any{"phase": "arrive", "label": label, "back": w.g.PathLabel(to, from), "returning": returning},
	}
	arrive.Text = w.arrivalText("", arrive)
	return []router.Action{leave, arrive}, nil
}

func (w *World) arrivalText(viewer string, act router.Action) string {
	if back, _ := act.Extra["back"].(string); back != "" {
		return w.fill("{0} arrives from the {back}.", viewer, act)
	}
	return w.fill("{0} arrives.", viewer, act)
}

func (goVerb) FormatObservation(w *World, viewer string, act router.Action) string {
	if act.Extra["phase"] == "leave" {
		return w.fill("{0} leaves towards the {label}.", viewer, act)
	}
	if viewer != act.Actor() {
		return w.arrivalText(viewer, act)
	}
	head := w.fill("You go {label}.", viewer, act)
	if returning, _ := act.Extra["returning"].(bool); returning {
		head += fmt.Sprintf(" You're back in %s.", w.refer(viewer, act.RoomID))
	}
	return head + "\n" + w.RoomText(viewer)
}

func followVerb() Verb {
	return &verbDef{
		name:   "follow",
		scopes: []resolve.Scope{resolve.SameLoc},
		check: func(w *World, args []string) string {
			actor, target := args[0], args[1]
			switch {
			case target == actor:
				return "You can't follow yourself."
			case !w.IsAlive(target) || !w.sameLoc(actor, target):
				return "You can't follow that."
			case w.g.Following(actor) == target:
				return "You are already following " + w.refer(actor, target) + "."
			}
			return ""
		},
		apply: func(w *World, args []string, _ *router.Action) ([]router.Action, error) {
			return nil, w.g.Follow(args[0], args[1])
		},
		self:   "You follow {1}.",
		other:  "{0} follows {1}.",
		target: "{0} starts following you.",
	}
}

func unfollowVerb() Verb {
	return &verbDef{
		name: "unfollow",
		check: func(w *World, args []string) string {
			if w.g.Following(args[0]) == "" {
				return "You aren't following anyone."
			}
			return ""
		},
		apply: func(w *World, args []string, act *router.Action) ([]router.Action, error) {
			act.Actors = append(act.Actors, w.g.Unfollow(args[0]))
			return nil, nil
		},
		self:  "You stop following {1}.",
		other: "{0} stops following {1}.",
	}
}

// lockVerb builds lock and unlock over the path to a neighboring room.
func lockVerb(name string, locking bool) Verb {
	return &verbDef{
		name:   name,
		scopes: []resolve.Scope{resolve.Path, resolve.Carrying},
		seps:   [][]string{{"with", "using"}},
		what:   capitalize(name) + " what with what?",
		check: func(w *World, args []string) string {
			actor, to, key := args[0], args[1], args[2]
			here, _ := w.g.RoomOf(actor)
			p, ok := w.g.PathBetween(here, to)
			switch {
			case !ok:
				return "There's no path there."
			case p.LockedWith == "":
				return "There's nothing to " + name + " there."
			case p.Locked == locking:
				return "It's already " + name + "ed."
			case !w.carries(actor, key):
				return "You don't have that."
			case p.LockedWith != key:
				return capitalize(w.refer(actor, key)) + " doesn't fit."
			}
			return ""
		},
		apply: func(w *World, args []string, act *router.Action) ([]router.Action, error) {
			here, _ := w.g.RoomOf(args[0])
			act.Extra["label"] = w.g.PathLabel(here, args[1])
			if locking {
				return nil, w.g.Lock(here, args[1], args[2])
			}
			return nil, w.g.Unlock(here, args[1], args[2])
		},
		self:  "You " + name + " the path to the {label} with {2}.",
		other: "{0} " + name + "s the path to the {label}.",
	}
}
