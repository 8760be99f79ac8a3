package world

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
)

// World-level snapshot keys, stored next to the graph's own.
const (
	keyFrozen      = "world/frozen"
	keyInitialNPCs = "world/initial_npcs"
	keyTicks       = "world/ticks"
	prefixPlayer   = "world/player/"
	prefixVisited  = "world/visited/"
	prefixLastRoom = "world/last_room/"
)

// Snapshot dumps the graph plus player mappings and clock state.
func (w *World) Snapshot() (*gamedb.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.g.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("world: snapshot: %w", err)
	}
	s.Entries[keyFrozen] = strconv.FormatBool(w.frozen)
	s.Entries[keyInitialNPCs] = strconv.Itoa(w.initialNPCs)
	s.Entries[keyTicks] = strconv.Itoa(w.ticks)
	for pid, agent := range w.players {
		s.Entries[prefixPlayer+pid] = agent
	}
	for agent := range w.visited {
		data, err := json.Marshal(w.Visited(agent))
		if err != nil {
			return nil, fmt.Errorf("world: snapshot visited %s: %w", agent, err)
		}
		s.Entries[prefixVisited+agent] = string(data)
	}
	for agent, room := range w.lastRoom {
		s.Entries[prefixLastRoom+agent] = room
	}
	return s, nil
}

// Restore replaces the world's graph and state with a snapshot's. Router
// buffers are reset; delivery subscriptions on the bus are kept. Nothing
// changes if any entry fails to decode.
func (w *World) Restore(s *gamedb.Snapshot) error {
	g, err := gamedb.Restore(s)
	if err != nil {
		return fmt.Errorf("world: restore: %w", err)
	}

	players := make(map[string]string)
	agentPlayer := make(map[string]string)
	visited := make(map[string]map[string]bool)
	lastRoom := make(map[string]string)
	for key, val := range s.Entries {
		switch {
		case strings.HasPrefix(key, prefixPlayer):
			pid := strings.TrimPrefix(key, prefixPlayer)
			if !g.Exists(val) {
				log.Printf("WARNING: world: restore: player %s body %s is gone", pid, val)
				continue
			}
			players[pid] = val
			agentPlayer[val] = pid
		case strings.HasPrefix(key, prefixVisited):
			var rooms []string
			if err := json.Unmarshal([]byte(val), &rooms); err != nil {
				return fmt.Errorf("world: restore %s: %w", key, err)
			}
			set := make(map[string]bool, len(rooms))
			for _, r := range rooms {
				set[r] = true
			}
			visited[strings.TrimPrefix(key, prefixVisited)] = set
		case strings.HasPrefix(key, prefixLastRoom):
			lastRoom[strings.TrimPrefix(key, prefixLastRoom)] = val
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range w.Agents() {
		w.router.Forget(a)
	}
	for _, r := range w.g.Rooms() {
		w.router.ForgetRoom(r)
	}
	w.players = players
	w.agentPlayer = agentPlayer
	w.visited = visited
	w.lastRoom = lastRoom
	w.policies = make(map[string]Policy)
	w.attach(g)

	w.frozen = s.Entries[keyFrozen] == "true"
	if n, err := strconv.Atoi(s.Entries[keyInitialNPCs]); err == nil {
		w.initialNPCs = n
	}
	if n, err := strconv.Atoi(s.Entries[keyTicks]); err == nil {
		w.ticks = n
	}
	return nil
}
