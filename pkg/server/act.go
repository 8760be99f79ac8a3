package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/router"
	"github.com/crystal-mush/graphworld/pkg/world"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrNotWizard rejects structured narration from ordinary players.
	ErrNotWizard = errors.New("server: wizard only")
	// ErrNoRoom is returned when narration has no room to go to.
	ErrNoRoom = errors.New("server: no such room")
)

// Reply is what a polling client receives: buffered narration for the
// player's body plus the action records behind it.
type Reply struct {
	router.Observation
	Agent   string          `json:"agent,omitempty"`
	Actions []router.Action `json:"actions,omitempty"`
	Timeout bool            `json:"timeout,omitempty"`
}

// Narrate broadcasts a structured system action. An empty RoomID means the
// room of the player's body.
func (g *Game) Narrate(playerID string, wizard bool, act router.Action) error {
	if !wizard {
		return ErrNotWizard
	}
	var err error
	g.World.Locked(func(w *world.World) {
		if act.RoomID == "" {
			if body, ok := w.BodyOf(playerID); ok {
				act.RoomID, _ = w.Graph().RoomOf(body)
			}
		}
		if act.RoomID == "" || !w.Graph().HasClass(act.RoomID, gamedb.ClassRoom) {
			err = fmt.Errorf("%w: %q", ErrNoRoom, act.RoomID)
			return
		}
		w.Broadcast(act)
	})
	return err
}

// Collect drains what is waiting for the player's body.
func (g *Game) Collect(playerID string) Reply {
	agent, ok := g.World.PlayerAgent(playerID)
	if !ok {
		return Reply{}
	}
	r := g.World.Router()
	rep := Reply{Agent: agent}
	rep.Text = r.Drain(agent)
	rep.Actions = r.DrainActions(agent)
	if len(rep.Actions) > 0 {
		rep.QuickReplies = rep.Actions[len(rep.Actions)-1].QuickReplies()
	}
	rep.ID = ulid.Make().String()
	return rep
}

// Await polls until narration is buffered for the player's body or wait
// elapses, then collects it. wait is capped by the configured reply
// timeout.
func (g *Game) Await(ctx context.Context, playerID string, wait time.Duration) (Reply, error) {
	if limit := g.Conf.PollTimeout(); wait > limit {
		wait = limit
	}
	if wait > 0 {
		err := PollUntil(ctx, g.Conf.PollInterval(), wait, func() bool {
			agent, ok := g.World.PlayerAgent(playerID)
			return ok && g.World.Router().Buffered(agent) > 0
		})
		if errors.Is(err, ErrPollTimeout) {
			rep := g.Collect(playerID)
			rep.Timeout = rep.Text == ""
			return rep, nil
		}
		if err != nil {
			return Reply{}, err
		}
	}
	return g.Collect(playerID), nil
}
