package world

import (
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/resolve"
	"github.com/crystal-mush/graphworld/pkg/router"
)

// Values of the equipped property.
const (
	equipWorn    = "worn"
	equipWielded = "wielded"
)

func (w *World) carries(agent, id string) bool {
	loc, ok := w.g.Location(id)
	return ok && loc == agent
}

func (w *World) sameLoc(agent, id string) bool {
	a, ok := w.g.Location(agent)
	b, ok2 := w.g.Location(id)
	return ok && ok2 && a == b
}

// onGround reports whether id lies in agent's location, directly or inside
// a container there.
func (w *World) onGround(agent, id string) bool {
	if w.sameLoc(agent, id) {
		return true
	}
	loc, ok := w.g.Location(id)
	return ok && w.g.HasClass(loc, gamedb.ClassContainer) && !w.IsAlive(loc) && w.sameLoc(agent, loc)
}

func (w *World) equipped(id string) bool {
	return w.g.StrProp(id, gamedb.PropEquipped) != ""
}

func (w *World) item(id string) bool {
	return !w.g.HasClass(id, gamedb.ClassRoom) && !w.g.HasClass(id, gamedb.ClassAgent) && id != gamedb.VoidID
}

func moveTo(w *World, obj, dest string) error {
	return w.g.Move(obj, dest)
}

func getVerb() Verb {
	return &verbDef{
		name:   "get",
		scopes: []resolve.Scope{resolve.SameLoc | resolve.Contains},
		cut:    []string{"from", "off"},
		check: func(w *World, args []string) string {
			actor, obj := args[0], args[1]
			switch {
			case !w.item(obj):
				return "You can't pick that up."
			case w.carries(actor, obj):
				return "You already have that."
			case !w.onGround(actor, obj):
				return "You don't see that here."
			case !w.g.ObjFits(obj, actor):
				return "You can't carry that."
			}
			return ""
		},
		apply: func(w *World, args []string, _ *router.Action) ([]router.Action, error) {
			return nil, moveTo(w, args[1], args[0])
		},
		self:  "You get {1}.",
		other: "{0} gets {1}.",
	}
}

func surface(w *World, container string) string {
	if s := w.g.StrProp(container, gamedb.PropSurfaceType); s != "" {
		return s
	}
	return "in"
}

func putVerb() Verb {
	return &verbDef{
		name:   "put",
		scopes: []resolve.Scope{resolve.Carrying, resolve.Carrying | resolve.SameLoc},
		seps:   [][]string{{"in", "on", "into", "onto", "inside"}},
		what:   "Put what where?",
		check: func(w *World, args []string) string {
			actor, obj, into := args[0], args[1], args[2]
			switch {
			case !w.carries(actor, obj):
				return "You don't have that."
			case w.equipped(obj):
				return "You need to remove it first."
			case obj == into || w.g.IsInside(into, obj):
				return "You can't put something inside itself."
			case !w.g.HasClass(into, gamedb.ClassContainer) || w.IsAlive(into):
				return "You can't put things there."
			case !w.carries(actor, into) && !w.sameLoc(actor, into):
				return "You don't see that here."
			case !w.g.ObjFits(obj, into):
				return "It doesn't fit."
			}
			return ""
		},
		apply: func(w *World, args []string, act *router.Action) ([]router.Action, error) {
			act.Extra["surface"] = surface(w, args[2])
			return nil, moveTo(w, args[1], args[2])
		},
		sep: func(w *World, args []string, _ int) string {
			return surface(w, args[2])
		},
		self:  "You put {1} {surface} {2}.",
		other: "{0} puts {1} {surface} {2}.",
	}
}

func dropVerb() Verb {
	return &verbDef{
		name:   "drop",
		scopes: []resolve.Scope{resolve.Carrying},
		check: func(w *World, args []string) string {
			switch {
			case !w.carries(args[0], args[1]):
				return "You don't have that."
			case w.equipped(args[1]):
				return "You need to remove it first."
			}
			return ""
		},
		apply: func(w *World, args []string, _ *router.Action) ([]router.Action, error) {
			loc, _ := w.g.Location(args[0])
			return nil, moveTo(w, args[1], loc)
		},
		self:  "You drop {1}.",
		other: "{0} drops {1}.",
	}
}

func giveVerb() Verb {
	return &verbDef{
		name:   "give",
		scopes: []resolve.Scope{resolve.Carrying, resolve.SameLoc},
		seps:   [][]string{{"to"}},
		what:   "Give what to whom?",
		check: func(w *World, args []string) string {
			actor, obj, to := args[0], args[1], args[2]
			switch {
			case !w.carries(actor, obj):
				return "You don't have that."
			case w.equipped(obj):
				return "You need to remove it first."
			case to == actor:
				return "You already have it."
			case !w.IsAlive(to) || !w.sameLoc(actor, to):
				return "You can't give things to that."
			case !w.g.ObjFits(obj, to):
				return capitalize(w.refer(actor, to)) + " can't carry that."
			}
			return ""
		},
		apply: func(w *World, args []string, _ *router.Action) ([]router.Action, error) {
			return nil, moveTo(w, args[1], args[2])
		},
		self:   "You give {1} to {2}.",
		other:  "{0} gives {1} to {2}.",
		target: "{0} gives you {1}.",
	}
}

func stealVerb() Verb {
	return &verbDef{
		name:   "steal",
		scopes: []resolve.Scope{resolve.SameLoc | resolve.Others, resolve.SameLoc},
		seps:   [][]string{{"from"}},
		what:   "Steal what from whom?",
		check: func(w *World, args []string) string {
			actor, obj, from := args[0], args[1], args[2]
			switch {
			case from == actor:
				return "You already have it."
			case !w.IsAlive(from) || !w.sameLoc(actor, from):
				return "You can't steal from that."
			case !w.carries(from, obj):
				return capitalize(w.refer(actor, from)) + " doesn't have that."
			case w.equipped(obj):
				return "You can't steal something in use."
			case !w.g.ObjFits(obj, actor):
				return "You can't carry that."
			}
			return ""
		},
		apply: func(w *World, args []string, _ *router.Action) ([]router.Action, error) {
			return nil, moveTo(w, args[1], args[0])
		},
		self:   "You steal {1} from {2}.",
		other:  "{0} steals {1} from {2}.",
		target: "{0} steals {1} from you!",
	}
}

// equipVerb builds wear and wield: the item's stat is added to the
// wearer's while equipped.
func equipVerb(name string, class gamedb.Class, mode string, stat gamedb.PropKey, self, other string) Verb {
	return &verbDef{
		name:   name,
		scopes: []resolve.Scope{resolve.Carrying},
		check: func(w *World, args []string) string {
			switch {
			case !w.carries(args[0], args[1]):
				return "You don't have that."
			case !w.g.HasClass(args[1], class):
				return "You can't " + name + " that."
			case w.equipped(args[1]):
				return "You are already using that."
			}
			return ""
		},
		apply: func(w *World, args []string, _ *router.Action) ([]router.Action, error) {
			if err := w.g.SetProp(args[1], gamedb.PropEquipped, gamedb.Str(mode)); err != nil {
				return nil, err
			}
			_, err := w.g.IncProp(args[0], stat, w.g.IntProp(args[1], stat))
			return nil, err
		},
		self:  self,
		other: other,
	}
}

func removeVerb() Verb {
	return &verbDef{
		name:   "remove",
		scopes: []resolve.Scope{resolve.Carrying},
		check: func(w *World, args []string) string {
			if !w.carries(args[0], args[1]) || !w.equipped(args[1]) {
				return "You aren't using that."
			}
			return ""
		},
		apply: func(w *World, args []string, _ *router.Action) ([]router.Action, error) {
			stat := gamedb.PropDefense
			if w.g.StrProp(args[1], gamedb.PropEquipped) == equipWielded {
				stat = gamedb.PropDamage
			}
			w.g.DeleteProp(args[1], gamedb.PropEquipped)
			_, err := w.g.IncProp(args[0], stat, -w.g.IntProp(args[1], stat))
			return nil, err
		},
		self:  "You remove {1}.",
		other: "{0} removes {1}.",
	}
}

// consumeVerb builds eat and drink. The item's health property adjusts the
// consumer's health, one point when unset; the item is then deleted.
func consumeVerb(name string, class gamedb.Class, self, other string) Verb {
	return &verbDef{
		name:   name,
		scopes: []resolve.Scope{resolve.Carrying},
		check: func(w *World, args []string) string {
			switch {
			case !w.carries(args[0], args[1]):
				return "You don't have that."
			case !w.g.HasClass(args[1], class):
				return "You can't " + name + " that."
			}
			return ""
		},
		apply: func(w *World, args []string, _ *router.Action) ([]router.Action, error) {
			actor, obj := args[0], args[1]
			delta := 1
			if v, ok := w.g.Prop(obj, gamedb.PropHealth); ok {
				delta = v.AsInt()
			}
			h := w.health(actor) + delta
			if err := w.g.SetProp(actor, gamedb.PropHealth, gamedb.Int(h)); err != nil {
				return nil, err
			}
			if err := w.g.MoveUnchecked(obj, gamedb.VoidID); err != nil {
				return nil, err
			}
			w.g.Delete(obj)
			if h <= 0 {
				return []router.Action{w.die(actor)}, nil
			}
			return nil, nil
		},
		self:  self,
		other: other,
	}
}
