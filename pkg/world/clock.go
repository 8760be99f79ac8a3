package world

import (
	"context"
	"log"
	"time"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/router"
)

// Tick advances the world by one step: each live NPC acts, corpses decay,
// queued deletions are applied and the NPC population is topped up. A
// frozen world does nothing.
func (w *World) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frozen {
		return
	}
	start := time.Now()
	w.ticks++

	npcs := w.LiveNPCs()
	if w.initialNPCs <= 0 {
		w.initialNPCs = len(npcs)
	}
	for _, npc := range npcs {
		if !w.IsAlive(npc) || w.g.BoolProp(npc, gamedb.PropHuman) {
			continue
		}
		if p := w.policyFor(npc); p != nil {
			w.act(p, npc)
		}
	}

	w.decay()
	if removed := w.g.FlushDeletions(); len(removed) > 0 {
		log.Printf("world: tick %d removed %d entities", w.ticks, len(removed))
	}
	w.repopulate()

	if w.observer != nil {
		w.observer.TickDone(time.Since(start))
	}
}

func (w *World) act(p Policy, npc string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("world: PANIC in policy for %s: %v", npc, r)
		}
	}()
	p.Act(w, npc)
}

func (w *World) decay() {
	for _, id := range w.g.IDs() {
		if !w.g.BoolProp(id, gamedb.PropDead) || w.g.IsPending(id) {
			continue
		}
		n, err := w.g.IncProp(id, gamedb.PropDeathTicks, 1)
		if err != nil || n <= w.cfg.DecayTicks {
			continue
		}
		room, _ := w.g.RoomOf(id)
		act := router.Action{Caller: "death", RoomID: room, Actors: []string{id}, Exclude: []string{id}}
		act.Text = capitalize(w.refer("", id)) + " disintegrates."
		w.Broadcast(act)
		w.g.Delete(id)
	}
}

// repopulate spawns at most one NPC per tick while the live count is
// below its initial level.
func (w *World) repopulate() {
	if w.populator == nil || len(w.LiveNPCs()) >= w.initialNPCs {
		return
	}
	id, err := w.populator.SpawnReplacementNPC(w)
	if err != nil {
		log.Printf("WARNING: world: replacement NPC: %v", err)
		return
	}
	log.Printf("world: spawned replacement NPC %s", id)
}

// Run ticks every interval until ctx is done.
func (w *World) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.Tick()
		}
	}
}
