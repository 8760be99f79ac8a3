package server

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/buildkite/shellwords"
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/world"
)

// builderCmd runs with the world lock held. args are shell-split.
type builderCmd struct {
	usage string
	run   func(g *Game, w *world.World, actor string, args []string) (string, error)
}

var builderCmds = map[string]builderCmd{
	"@dig":      {"@dig <description> [<exit here> <exit back>]", cmdDig},
	"@open":     {"@open <room id> <exit here> <exit back>", cmdOpen},
	"@create":   {"@create <description> [class ...]", cmdCreate},
	"@set":      {"@set <id|here|me> <prop>=<value>", cmdSet},
	"@freeze":   {"@freeze", cmdFreeze},
	"@thaw":     {"@thaw", cmdThaw},
	"@snapshot": {"@snapshot", cmdSnapshot},
}

var creatableClasses = map[gamedb.Class]bool{
	gamedb.ClassObject:    true,
	gamedb.ClassContainer: true,
	gamedb.ClassWearable:  true,
	gamedb.ClassWieldable: true,
	gamedb.ClassFood:      true,
	gamedb.ClassDrink:     true,
}

// InstallBuilder registers the wizard @-commands on the world's
// unhandled-verb chain.
func (g *Game) InstallBuilder() {
	g.World.OnUnhandled(g.builder)
}

func (g *Game) builder(verb string, args []string, actor string) bool {
	cmd, ok := builderCmds[verb]
	if !ok {
		return false
	}
	w := g.World
	pid, ok := w.PlayerOf(actor)
	if !ok || !g.isWizardPlayer(pid) {
		return false
	}
	words, err := shellwords.SplitPosix(strings.Join(args, " "))
	if err != nil {
		w.Tell(actor, fmt.Sprintf("%s: %v", verb, err))
		return true
	}
	msg, err := cmd.run(g, w, actor, words)
	if err != nil {
		w.Tell(actor, fmt.Sprintf("%s: %v\nUsage: %s", verb, err, cmd.usage))
		return true
	}
	log.Printf("builder: %s ran %s %s", pid, verb, strings.Join(words, " "))
	w.Tell(actor, msg)
	return true
}

// isWizardPlayer checks connected sessions, the config list and the
// account record.
func (g *Game) isWizardPlayer(pid string) bool {
	if g.playerIsWizard(pid) || g.Conf.IsWizard(pid) {
		return true
	}
	if g.Store == nil {
		return false
	}
	acct, err := g.Store.GetAccount(pid)
	return err == nil && acct.Wizard
}

// target resolves "here", "me" or an entity id.
func target(w *world.World, actor, ref string) (string, error) {
	switch strings.ToLower(ref) {
	case "here":
		room, ok := w.Graph().RoomOf(actor)
		if !ok {
			return "", fmt.Errorf("you are nowhere")
		}
		return room, nil
	case "me":
		return actor, nil
	}
	if !w.Graph().Exists(ref) {
		return "", fmt.Errorf("no entity %q", ref)
	}
	return ref, nil
}

func cmdDig(g *Game, w *world.World, actor string, args []string) (string, error) {
	if len(args) != 1 && len(args) != 3 {
		return "", fmt.Errorf("wrong number of arguments")
	}
	room, err := w.Graph().Create(args[0], nil, gamedb.ClassRoom)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Dug %s as %s.", args[0], room)
	if len(args) == 3 {
		here, err := target(w, actor, "here")
		if err != nil {
			return "", err
		}
		if err := w.Graph().AddPath(here, room, args[1], args[2], ""); err != nil {
			return "", err
		}
		msg += fmt.Sprintf(" Exits %q and %q link it here.", args[1], args[2])
	}
	return msg, nil
}

func cmdOpen(g *Game, w *world.World, actor string, args []string) (string, error) {
	if len(args) != 3 {
		return "", fmt.Errorf("wrong number of arguments")
	}
	here, err := target(w, actor, "here")
	if err != nil {
		return "", err
	}
	to, err := target(w, actor, args[0])
	if err != nil {
		return "", err
	}
	if !w.Graph().HasClass(to, gamedb.ClassRoom) {
		return "", fmt.Errorf("%s is not a room", to)
	}
	if err := w.Graph().AddPath(here, to, args[1], args[2], ""); err != nil {
		return "", err
	}
	return fmt.Sprintf("Opened %q to %s.", args[1], to), nil
}

func cmdCreate(g *Game, w *world.World, actor string, args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("wrong number of arguments")
	}
	classes := []gamedb.Class{gamedb.ClassObject}
	for _, c := range args[1:] {
		cls := gamedb.Class(strings.ToLower(c))
		if !creatableClasses[cls] {
			return "", fmt.Errorf("cannot create class %q", c)
		}
		if cls != gamedb.ClassObject {
			classes = append(classes, cls)
		}
	}
	id, err := w.Graph().Create(args[0], nil, classes...)
	if err != nil {
		return "", err
	}
	here, err := target(w, actor, "here")
	if err != nil {
		return "", err
	}
	if err := w.Graph().Move(id, here); err != nil {
		w.Graph().Delete(id)
		return "", err
	}
	return fmt.Sprintf("Created %s as %s.", args[0], id), nil
}

func cmdSet(g *Game, w *world.World, actor string, args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("wrong number of arguments")
	}
	id, err := target(w, actor, args[0])
	if err != nil {
		return "", err
	}
	key, raw, ok := strings.Cut(args[1], "=")
	if !ok || key == "" {
		return "", fmt.Errorf("expected <prop>=<value>")
	}
	v := parsePropValue(raw)
	if err := w.Graph().SetProp(id, gamedb.PropKey(key), v); err != nil {
		return "", err
	}
	return fmt.Sprintf("Set %s %s=%s.", id, key, v.AsString()), nil
}

// parsePropValue reads ints and booleans as such and anything else as a
// string.
func parsePropValue(raw string) gamedb.Value {
	if n, err := strconv.Atoi(raw); err == nil {
		return gamedb.Int(n)
	}
	switch strings.ToLower(raw) {
	case "true":
		return gamedb.Bool(true)
	case "false":
		return gamedb.Bool(false)
	}
	return gamedb.Str(raw)
}

func cmdFreeze(g *Game, w *world.World, actor string, args []string) (string, error) {
	w.SetFrozen(true)
	return "The world holds still.", nil
}

func cmdThaw(g *Game, w *world.World, actor string, args []string) (string, error) {
	w.SetFrozen(false)
	return "The world moves again.", nil
}

func cmdSnapshot(g *Game, w *world.World, actor string, args []string) (string, error) {
	g.RequestSave()
	return "Snapshot requested.", nil
}
