package world

import (
	"fmt"
	"log"
	"strings"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/resolve"
	"github.com/crystal-mush/graphworld/pkg/router"
)

// maxBindings caps how many candidate combinations a parse tries before
// settling on the best-ranked ones.
const maxBindings = 64

// verbDef is a verb described by its targets, preconditions and narration
// templates. Most built-in verbs are verbDefs.
type verbDef struct {
	name   string
	scopes []resolve.Scope // one per target
	seps   [][]string      // seps[i] separates target i from target i+1
	cut    []string        // tokens that end the last target ("from")
	what   string          // reply when targets are missing

	// check returns a failure narration, or "" when args are acceptable.
	check func(w *World, args []string) string
	// apply mutates the world. It may adjust act and return follow-up
	// actions to broadcast after it.
	apply func(w *World, args []string, act *router.Action) ([]router.Action, error)
	// sep renders the separator before target i (1-based) in canonical form.
	sep func(w *World, args []string, i int) string

	self, other, target string
	// private verbs narrate only to the actor, from act.Extra["text"].
	private bool
}

func (v *verbDef) Name() string { return v.name }

func (v *verbDef) Arities() []int { return []int{len(v.scopes)} }

func (v *verbDef) ValidArgs(w *World, args []string) bool {
	if len(args) != len(v.scopes)+1 || !w.IsAlive(args[0]) {
		return false
	}
	for _, id := range args[1:] {
		if !w.g.Exists(id) || id == gamedb.VoidID {
			return false
		}
	}
	return v.check == nil || v.check(w, args) == ""
}

func (v *verbDef) ParseTextToArgs(w *World, actor string, tokens []string) ([]string, string, bool) {
	if len(v.scopes) == 0 {
		return []string{actor}, "", true
	}
	if len(v.cut) > 0 {
		for i, t := range tokens {
			if i > 0 && contains(v.cut, strings.ToLower(t)) {
				tokens = tokens[:i]
				break
			}
		}
	}
	parts, ok := splitTargets(tokens, v.seps, len(v.scopes))
	if !ok {
		return nil, v.missing(), false
	}
	candidates := make([][]string, len(parts))
	for i, text := range parts {
		ids := resolve.Resolve(w.g, text, actor, v.scopes[i])
		if len(ids) == 0 {
			return nil, fmt.Sprintf("You don't see %s here.", text), false
		}
		candidates[i] = ids
	}
	return v.bind(w, actor, candidates), "", true
}

// bind picks the best-ranked combination of candidates that passes check,
// falling back to the best-ranked combination outright.
func (v *verbDef) bind(w *World, actor string, candidates [][]string) []string {
	best := []string{actor}
	for _, ids := range candidates {
		best = append(best, ids[0])
	}
	if v.check == nil {
		return best
	}
	tried := 0
	var walk func(args []string) []string
	walk = func(args []string) []string {
		if tried >= maxBindings {
			return nil
		}
		if len(args) == len(candidates)+1 {
			tried++
			if v.check(w, args) == "" {
				return args
			}
			return nil
		}
		for _, id := range candidates[len(args)-1] {
			next := append(append([]string(nil), args...), id)
			if found := walk(next); found != nil {
				return found
			}
		}
		return nil
	}
	if found := walk([]string{actor}); found != nil {
		return found
	}
	return best
}

func (v *verbDef) missing() string {
	if v.what != "" {
		return v.what
	}
	return capitalize(v.name) + " what?"
}

func (v *verbDef) CanonicalForm(w *World, args []string) string {
	parts := []string{v.name}
	for i, id := range args[1:] {
		if i > 0 {
			sep := v.seps[i-1][0]
			if v.sep != nil {
				sep = v.sep(w, args, i+1)
			}
			parts = append(parts, sep)
		}
		parts = append(parts, w.argText(args[0], v.scopes[i], id))
	}
	return strings.Join(parts, " ")
}

func (v *verbDef) Handle(w *World, args []string) ([]router.Action, bool) {
	actor := args[0]
	if v.check != nil {
		if reason := v.check(w, args); reason != "" {
			w.Tell(actor, reason)
			return nil, false
		}
	}
	room, _ := w.g.RoomOf(actor)
	act := router.Action{
		Caller: v.name,
		RoomID: room,
		Actors: append([]string(nil), args...),
		Extra:  map[string]any{},
	}
	names := make([]string, len(args))
	for i, id := range args {
		names[i] = w.desc(id)
	}
	act.Extra[namesKey] = names
	var follow []router.Action
	if v.apply != nil {
		var err error
		follow, err = v.apply(w, args, &act)
		if err != nil {
			log.Printf("world: %s %v: %v", v.name, args, err)
			w.Tell(actor, "You can't do that.")
			return nil, false
		}
	}
	if !v.private {
		act.Text = w.fill(v.other, "", act)
	}
	return append([]router.Action{act}, follow...), true
}

func (v *verbDef) FormatObservation(w *World, viewer string, act router.Action) string {
	if v.private {
		if viewer != act.Actor() {
			return ""
		}
		s, _ := act.Extra["text"].(string)
		return s
	}
	switch {
	case viewer == act.Actor():
		return w.fill(v.self, viewer, act)
	case v.target != "" && len(act.Actors) > 1 && viewer == act.Actors[len(act.Actors)-1]:
		return w.fill(v.target, viewer, act)
	}
	return w.fill(v.other, viewer, act)
}

// argText renders an entity the way a command would name it: rooms reached
// by a path use the path label.
func (w *World) argText(actor string, scope resolve.Scope, id string) string {
	if scope&resolve.Path != 0 && w.g.HasClass(id, gamedb.ClassRoom) {
		if room, ok := w.g.RoomOf(actor); ok {
			if label := w.g.PathLabel(room, id); label != "" {
				return label
			}
		}
	}
	return w.desc(id)
}

var articles = map[string]bool{"the": true, "a": true, "an": true, "some": true}

// splitTargets cuts tokens into n target phrases at the separator words,
// dropping leading articles.
func splitTargets(tokens []string, seps [][]string, n int) ([]string, bool) {
	var parts []string
	rest := tokens
	for i := 0; i < n-1; i++ {
		k := -1
		for j := 1; j < len(rest); j++ {
			if contains(seps[i], strings.ToLower(rest[j])) {
				k = j
				break
			}
		}
		if k < 0 {
			return nil, false
		}
		parts = append(parts, phrase(rest[:k]))
		rest = rest[k+1:]
	}
	parts = append(parts, phrase(rest))
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	return parts, true
}

func phrase(tokens []string) string {
	for len(tokens) > 0 && articles[strings.ToLower(tokens[0])] {
		tokens = tokens[1:]
	}
	return strings.Join(tokens, " ")
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
