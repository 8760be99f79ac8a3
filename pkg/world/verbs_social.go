package world

import (
	"strings"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/resolve"
	"github.com/crystal-mush/graphworld/pkg/router"
)

// speechVerb carries free text, optionally addressed to an agent in the
// room. Its args are [actor, content] or [actor, target, content].
type speechVerb struct {
	name      string
	addressed bool
	// private hides the content from everyone but speaker and target.
	private bool
	// prep goes between the verb and its target ("whispers to").
	prep string
}

func (s speechVerb) Name() string   { return s.name }
func (s speechVerb) Arities() []int { return nil }

func (s speechVerb) ValidArgs(w *World, args []string) bool {
	if !w.IsAlive(args[0]) {
		return false
	}
	if !s.addressed {
		return len(args) == 2 && args[1] != ""
	}
	return len(args) == 3 && args[2] != "" && args[1] != args[0] &&
		w.IsAlive(args[1]) && w.sameLoc(args[0], args[1])
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func (s speechVerb) ParseTextToArgs(w *World, actor string, tokens []string) ([]string, string, bool) {
	if !s.addressed {
		content := unquote(strings.Join(tokens, " "))
		if content == "" {
			return nil, "Say what?", false
		}
		return []string{actor, content}, "", true
	}
	if len(tokens) < 2 {
		return nil, capitalize(s.name) + " whom what?", false
	}
	split := 1
	for i, t := range tokens {
		if strings.HasPrefix(t, `"`) {
			split = i
			break
		}
	}
	if split == 0 {
		return nil, capitalize(s.name) + " whom?", false
	}
	who := phrase(tokens[:split])
	content := unquote(strings.Join(tokens[split:], " "))
	if content == "" {
		return nil, capitalize(s.name) + " what?", false
	}
	for _, id := range resolve.Resolve(w.g, who, actor, resolve.SameLoc) {
		if w.IsAlive(id) && id != actor {
			return []string{actor, id, content}, "", true
		}
	}
	return nil, "You don't see " + who + " here.", false
}

func (s speechVerb) CanonicalForm(w *World, args []string) string {
	if !s.addressed {
		return s.name + ` "` + args[1] + `"`
	}
	return s.name + " " + w.desc(args[1]) + ` "` + args[2] + `"`
}

func (s speechVerb) Handle(w *World, args []string) ([]router.Action, bool) {
	if !s.ValidArgs(w, args) {
		w.Tell(args[0], "They can't hear you.")
		return nil, false
	}
	room, _ := w.g.RoomOf(args[0])
	act := router.Action{
		Caller: s.name,
		RoomID: room,
		Actors: args[:len(args)-1:len(args)-1],
		Extra:  map[string]any{"content": args[len(args)-1]},
	}
	act.Text = s.FormatObservation(w, "", act)
	return []router.Action{act}, true
}

func (s speechVerb) FormatObservation(w *World, viewer string, act router.Action) string {
	if viewer == act.Actor() {
		if s.addressed {
			return w.fill("You "+s.name+s.prep+` {1} "{content}"`, viewer, act)
		}
		return w.fill(`You say "{content}"`, viewer, act)
	}
	if !s.addressed {
		return w.fill(`{0} says "{content}"`, viewer, act)
	}
	if s.private && viewer != act.Actors[1] {
		return w.fill("{0} whispers something to {1}.", viewer, act)
	}
	return w.fill("{0} "+s.name+"s"+s.prep+` {1} "{content}"`, viewer, act)
}

// emotes maps each social gesture to its third-person form.
var emotes = map[string]string{
	"applaud": "applauds",
	"blush":   "blushes",
	"cry":     "cries",
	"dance":   "dances",
	"frown":   "frowns",
	"gasp":    "gasps",
	"grin":    "grins",
	"groan":   "groans",
	"growl":   "growls",
	"laugh":   "laughs",
	"nod":     "nods",
	"ponder":  "ponders",
	"pout":    "pouts",
	"scream":  "screams",
	"shrug":   "shrugs",
	"sigh":    "sighs",
	"smile":   "smiles",
	"stare":   "stares",
	"wave":    "waves",
	"wink":    "winks",
	"yawn":    "yawns",
}

func emoteVerb(name, third string) Verb {
	return &verbDef{
		name:  name,
		self:  "You " + name + ".",
		other: "{0} " + third + ".",
	}
}

func hugVerb() Verb {
	return &verbDef{
		name:   "hug",
		scopes: []resolve.Scope{resolve.SameLoc},
		check: func(w *World, args []string) string {
			if args[1] == args[0] || !w.IsAlive(args[1]) || !w.sameLoc(args[0], args[1]) {
				return "You can't hug that."
			}
			return ""
		},
		self:   "You hug {1}.",
		other:  "{0} hugs {1}.",
		target: "{0} hugs you.",
	}
}

// hitVerb deals the attacker's damage less the target's defense, at least
// one point. A target brought to zero health dies.
func hitVerb() Verb {
	return &verbDef{
		name:   "hit",
		scopes: []resolve.Scope{resolve.SameLoc},
		check: func(w *World, args []string) string {
			switch {
			case args[1] == args[0]:
				return "You can't hit yourself."
			case !w.IsAlive(args[1]) || !w.sameLoc(args[0], args[1]):
				return "You can't hit that."
			}
			return ""
		},
		apply: func(w *World, args []string, _ *router.Action) ([]router.Action, error) {
			dmg := w.g.IntProp(args[0], gamedb.PropDamage)
			if dmg <= 0 {
				dmg = 1
			}
			dmg -= w.g.IntProp(args[1], gamedb.PropDefense)
			if dmg < 1 {
				dmg = 1
			}
			h := w.health(args[1]) - dmg
			if err := w.g.SetProp(args[1], gamedb.PropHealth, gamedb.Int(h)); err != nil {
				return nil, err
			}
			if h <= 0 {
				return []router.Action{w.die(args[1])}, nil
			}
			return nil, nil
		},
		self:   "You hit {1}.",
		other:  "{0} hits {1}.",
		target: "{0} hits you!",
	}
}
