package server

import (
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/oob"
	"github.com/crystal-mush/graphworld/pkg/world"
)

// gmcpState reads the Room.Info and Char.Vitals payloads for agent.
func (g *Game) gmcpState(agent string) (room oob.RoomInfo, vitals oob.Vitals, ok bool) {
	g.World.Locked(func(w *world.World) {
		gr := w.Graph()
		if !gr.Exists(agent) {
			return
		}
		id, found := gr.RoomOf(agent)
		if !found {
			return
		}
		room = oob.RoomInfo{ID: id, Name: gr.Desc(id), Exits: []string{}}
		for _, to := range gr.Neighbors(id) {
			room.Exits = append(room.Exits, gr.PathLabel(id, to))
		}
		for _, a := range w.AgentsIn(id) {
			if a != agent {
				room.Agents = append(room.Agents, gr.Desc(a))
			}
		}
		vitals = oob.Vitals{
			Agent:    agent,
			Health:   gr.IntProp(agent, gamedb.PropHealth),
			Gold:     gr.IntProp(agent, gamedb.PropGold),
			Carrying: len(gr.Contains(agent)),
		}
		ok = true
	})
	return room, vitals, ok
}

// sendGMCPState pushes the session's room and vitals to a GMCP client.
func (g *Game) sendGMCPState(d *Descriptor) {
	if d.OOB == nil || !d.OOB.GMCP() {
		return
	}
	agent := d.Agent()
	if agent == "" {
		return
	}
	room, vitals, ok := g.gmcpState(agent)
	if !ok {
		return
	}
	d.SendGMCP("Room.Info", room)
	d.SendGMCP("Char.Vitals", vitals)
}
