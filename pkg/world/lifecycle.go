package world

import (
	"errors"
	"log"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/router"
)

// ErrNoBody is returned when no NPC is free for a player to take over.
var ErrNoBody = errors.New("world: no body available")

// Die kills an agent and narrates the death to its room.
func (w *World) Die(agent string) {
	w.Broadcast(w.die(agent))
}

// die turns an agent into a corpse: a container object that keeps what
// the agent carried. It returns the death narration for the caller to
// broadcast.
func (w *World) die(agent string) router.Action {
	room, _ := w.g.RoomOf(agent)
	act := router.Action{
		Caller:  "death",
		RoomID:  room,
		Actors:  []string{agent},
		Exclude: []string{agent},
	}
	act.Text = capitalize(w.refer("", agent)) + " died!"

	w.g.Unfollow(agent)
	for _, f := range w.g.Followers(agent) {
		w.g.Unfollow(f)
	}
	w.g.SetProp(agent, gamedb.PropDead, gamedb.Bool(true))
	w.g.SetProp(agent, gamedb.PropDeathTicks, gamedb.Int(0))
	w.g.SetProp(agent, gamedb.PropHealth, gamedb.Int(0))
	w.g.SetProp(agent, gamedb.PropExamined, gamedb.Bool(true))
	w.g.RemoveClass(agent, gamedb.ClassAgent)
	w.g.AddClass(agent, gamedb.ClassObject)
	w.g.AddClass(agent, gamedb.ClassContainer)
	for _, id := range w.g.Contains(agent) {
		w.g.DeleteProp(id, gamedb.PropEquipped)
	}
	w.g.SetDesc(agent, "corpse of "+w.refer("", agent))
	w.g.AddName(agent, "corpse")
	delete(w.policies, agent)

	if w.g.BoolProp(agent, gamedb.PropHuman) {
		w.Tell(agent, "You have died. Type *respawn* to return as someone else.")
	}
	log.Printf("world: %s died in %s", agent, room)
	return act
}

// SpawnPlayer gives a player a body. An existing live body is returned as
// is; otherwise the first free NPC is taken over. With no NPC free the
// player's mapping is left unchanged and ErrNoBody returned. An empty
// playerID gets a fresh one.
func (w *World) SpawnPlayer(playerID string) (string, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if playerID == "" {
		playerID = strings.ToLower(ulid.Make().String())
	}
	agent, err := w.spawnPlayer(playerID)
	return playerID, agent, err
}

func (w *World) spawnPlayer(playerID string) (string, error) {
	old, had := w.players[playerID]
	if had && w.IsAlive(old) {
		return old, nil
	}
	var body string
	for _, id := range w.Agents() {
		if w.eligibleBody(id) {
			body = id
			break
		}
	}
	if body == "" {
		if had {
			w.Tell(old, "No body is free right now. Try *respawn* again later.")
		}
		return "", ErrNoBody
	}

	w.g.SetProp(body, gamedb.PropHuman, gamedb.Bool(true))
	w.g.SetProp(body, gamedb.PropIsPlayer, gamedb.Bool(true))
	delete(w.policies, body)
	w.router.Reset(body)
	if had {
		delete(w.agentPlayer, old)
		w.router.Bus().Move(old, body)
	}
	w.players[playerID] = body
	w.agentPlayer[body] = playerID
	if room, ok := w.g.RoomOf(body); ok {
		w.visit(body, room)
	}

	intro := "You are " + w.indefinite(body) + "."
	if persona := w.g.StrProp(body, gamedb.PropPersona); persona != "" {
		intro += " " + persona
	}
	w.Tell(body, intro+"\n"+w.RoomText(body))
	log.Printf("world: player %s takes %s", playerID, body)
	return body, nil
}

// ReleasePlayer hands a player's body back to the NPC policies.
func (w *World) ReleasePlayer(playerID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	agent, ok := w.players[playerID]
	if !ok {
		return
	}
	delete(w.players, playerID)
	delete(w.agentPlayer, agent)
	w.g.SetProp(agent, gamedb.PropHuman, gamedb.Bool(false))
	w.g.SetProp(agent, gamedb.PropIsPlayer, gamedb.Bool(false))
}
