package world

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/resolve"
	"github.com/crystal-mush/graphworld/pkg/router"
)

var shortcuts = map[string]string{
	"n":     "go north",
	"s":     "go south",
	"e":     "go east",
	"w":     "go west",
	"u":     "go up",
	"d":     "go down",
	"north": "go north",
	"south": "go south",
	"east":  "go east",
	"west":  "go west",
	"up":    "go up",
	"down":  "go down",
	"i":     "inventory",
	"inv":   "inventory",
	"l":     "look",
}

// UnknownVerb is the observer label for any word that is not a
// registered verb, so typed input never becomes a metric label.
const UnknownVerb = "unknown"

// rewrite expands shortcuts: single-letter directions, a leading quote
// meaning say, and "look [at] <thing>" meaning examine.
func rewrite(line string) string {
	line = strings.TrimSpace(line)
	lower := strings.ToLower(line)
	if s, ok := shortcuts[lower]; ok {
		return s
	}
	if strings.HasPrefix(line, `"`) {
		return "say " + line
	}
	if rest, ok := strings.CutPrefix(lower, "look "); ok {
		rest = strings.TrimSpace(rest)
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "at "))
		if rest == "" || rest == "at" || rest == "around" {
			return "look"
		}
		if len(lower) == len(line) {
			rest = line[len(line)-len(rest):]
		}
		return "examine " + rest
	}
	return line
}

// Execute runs one command line for actor under the world lock.
func (w *World) Execute(actor, line string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Do(actor, line)
}

// ExecutePlayer runs a command for whichever body a player controls.
// *respawn* works even when the player has no body yet.
func (w *World) ExecutePlayer(playerID, line string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	agent, ok := w.players[playerID]
	if !ok {
		if strings.EqualFold(strings.TrimSpace(line), "*respawn*") {
			_, err := w.spawnPlayer(playerID)
			return err == nil
		}
		return false
	}
	return w.Do(agent, line)
}

// Do parses and runs one command line for actor. The caller must hold the
// world lock; NPC policies call it from inside a tick.
func (w *World) Do(actor, line string) (ok bool) {
	start := time.Now()
	label := ""
	defer func() {
		if w.observer != nil && label != "" {
			w.observer.CommandDone(label, ok, time.Since(start))
		}
	}()

	line = rewrite(line)
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return false
	}
	verb := strings.ToLower(tokens[0])
	label = UnknownVerb

	if handled, result := w.reserved(actor, strings.ToLower(line)); handled {
		label = verb
		return result
	}
	if !w.IsAlive(actor) {
		w.Tell(actor, "You are dead. Type *respawn* to return as someone else.")
		return false
	}

	v := w.registry.Lookup(verb)
	if v == nil {
		if w.runUnhandled(verb, tokens[1:], actor) {
			return true
		}
		w.Tell(actor, w.cantText(verb))
		return false
	}
	verb = v.Name()
	label = verb
	args, errText, parsed := v.ParseTextToArgs(w, actor, tokens[1:])
	if !parsed {
		if w.runUnhandled(verb, tokens[1:], actor) {
			return true
		}
		if errText == "" {
			errText = "You can't do that."
		}
		w.Tell(actor, errText)
		return false
	}

	canonical := v.CanonicalForm(w, args)
	acts, ok := w.handle(v, args)
	if !ok {
		return false
	}
	for _, act := range acts {
		if act.Name == "" {
			act.Name = canonical
		}
		w.Broadcast(act)
	}
	return true
}

// handle runs a verb handler, converting a panic into a failed command.
// Mutations already made by the handler stay in place.
func (w *World) handle(v Verb, args []string) (acts []router.Action, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("world: PANIC in %s %v: %v", v.Name(), args, r)
			w.Tell(args[0], "Something went wrong.")
			acts, ok = nil, false
		}
	}()
	return v.Handle(w, args)
}

func (w *World) runUnhandled(verb string, args []string, actor string) bool {
	for _, fn := range w.unhandled {
		if fn(verb, args, actor) {
			return true
		}
	}
	return false
}

func (w *World) cantText(verb string) string {
	msg := fmt.Sprintf("You can't %s.", verb)
	if w.cfg.SuggestVerbs {
		if s := resolve.Suggest(verb, w.registry.Words()); s != "" {
			msg += fmt.Sprintf(" Did you mean %q?", s)
		}
	}
	return msg
}

// reserved handles commands that bypass the registry.
func (w *World) reserved(actor, lower string) (handled, ok bool) {
	switch lower {
	case "help":
		w.Tell(actor, "You can: "+strings.Join(w.registry.Names(), ", ")+
			". Also: map, fogmap, actions, commit suicide, *respawn*.")
		return true, true
	case "map":
		w.Tell(actor, w.mapText(nil))
		return true, true
	case "fogmap":
		seen := w.visited[actor]
		if room, ok := w.g.RoomOf(actor); ok {
			seen = mergeSet(seen, room)
		}
		w.Tell(actor, w.mapText(seen))
		return true, true
	case "actions":
		acts := w.PossibleActions(actor, nil)
		if len(acts) == 0 {
			w.Tell(actor, "There is nothing you can do.")
		} else {
			w.Tell(actor, strings.Join(acts, "\n"))
		}
		return true, true
	case "commit suicide":
		if !w.IsAlive(actor) {
			w.Tell(actor, "You are already dead.")
			return true, false
		}
		w.Die(actor)
		return true, true
	case "*respawn*":
		if w.IsAlive(actor) {
			w.Tell(actor, "You are still alive.")
			return true, false
		}
		pid, ok := w.agentPlayer[actor]
		if !ok {
			return true, false
		}
		_, err := w.spawnPlayer(pid)
		return true, err == nil
	}
	return false, false
}

func mergeSet(set map[string]bool, extra string) map[string]bool {
	out := make(map[string]bool, len(set)+1)
	for k := range set {
		out[k] = true
	}
	out[extra] = true
	return out
}

// mapText lists rooms and their exits. A nil filter shows every room.
func (w *World) mapText(only map[string]bool) string {
	var lines []string
	for _, room := range w.g.Rooms() {
		if only != nil && !only[room] {
			continue
		}
		var exits []string
		for _, to := range w.g.Neighbors(room) {
			if only != nil && !only[to] {
				exits = append(exits, w.g.PathLabel(room, to)+": ?")
				continue
			}
			exit := w.g.PathLabel(room, to) + ": " + w.desc(to)
			if w.g.IsLocked(room, to) {
				exit += " (locked)"
			}
			exits = append(exits, exit)
		}
		line := w.desc(room)
		if len(exits) > 0 {
			line += " [" + strings.Join(exits, ", ") + "]"
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// PossibleActions enumerates the canonical commands actor could run now,
// sorted. A non-nil allowed list restricts the verbs considered. The caller
// must hold the world lock.
func (w *World) PossibleActions(actor string, allowed []string) []string {
	if !w.IsAlive(actor) {
		return nil
	}
	ids := resolve.Candidates(w.g, actor, resolve.Carrying|resolve.SameLoc|resolve.Path|resolve.Contains|resolve.Others)
	set := make(map[string]bool)
	for _, name := range w.registry.Names() {
		if allowed != nil && !contains(allowed, name) {
			continue
		}
		v := w.registry.Lookup(name)
		for _, n := range v.Arities() {
			w.enumerate(v, []string{actor}, n, ids, set)
		}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (w *World) enumerate(v Verb, args []string, n int, ids []string, set map[string]bool) {
	if len(args) == n+1 {
		if v.ValidArgs(w, args) {
			set[v.CanonicalForm(w, args)] = true
		}
		return
	}
	for _, id := range ids {
		if contains(args, id) {
			continue
		}
		w.enumerate(v, append(args[:len(args):len(args)], id), n, ids, set)
	}
}

// eligibleBody reports whether an NPC may be taken over by a player.
func (w *World) eligibleBody(id string) bool {
	return w.IsAlive(id) && !w.g.BoolProp(id, gamedb.PropHuman) && w.g.IntProp(id, gamedb.PropSpeed) > 0
}
