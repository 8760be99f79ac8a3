package world

import (
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/resolve"
	"github.com/crystal-mush/graphworld/pkg/router"
)

// privateVerb builds a verb whose narration reaches only the actor.
func privateVerb(name string, scopes []resolve.Scope, text func(w *World, args []string) string) *verbDef {
	return &verbDef{
		name:    name,
		scopes:  scopes,
		private: true,
		apply: func(w *World, args []string, act *router.Action) ([]router.Action, error) {
			act.Extra["text"] = text(w, args)
			return nil, nil
		},
	}
}

func lookVerb() Verb {
	return privateVerb("look", nil, func(w *World, args []string) string {
		return w.RoomText(args[0])
	})
}

func inventoryVerb() Verb {
	return privateVerb("inventory", nil, func(w *World, args []string) string {
		return w.InventoryText(args[0])
	})
}

func healthVerb() Verb {
	return privateVerb("health", nil, func(w *World, args []string) string {
		return "You are feeling " + HealthWord(w.health(args[0])) + "."
	})
}

func examineVerb() Verb {
	v := privateVerb("examine",
		[]resolve.Scope{resolve.Carrying | resolve.SameLoc | resolve.Path | resolve.Contains | resolve.Others},
		func(w *World, args []string) string {
			text := w.ExamineText(args[0], args[1])
			if !w.g.HasClass(args[1], gamedb.ClassRoom) {
				w.g.SetProp(args[1], gamedb.PropExamined, gamedb.Bool(true))
			}
			return text
		})
	v.check = func(w *World, args []string) string {
		for _, id := range resolve.Candidates(w.g, args[0], v.scopes[0]) {
			if id == args[1] {
				return ""
			}
		}
		return "You don't see that here."
	}
	return v
}
