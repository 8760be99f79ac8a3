package gamedb

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
)

// SnapshotVersion is the version written by Snapshot. Restore accepts any
// version up to and including it.
const SnapshotVersion = 1

// Snapshot key prefixes.
const (
	keyNextID      = "meta/next_id"
	keyRooms       = "rooms"
	keyPending     = "pending"
	prefixEntity   = "entity/"
	prefixLocation = "contained_in/"
	prefixPath     = "path/"
	prefixFollows  = "follows/"
)

// Snapshot is a flat, versioned key/value dump of a Graph. Values are JSON.
type Snapshot struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
}

type entityRecord struct {
	Desc    string   `json:"desc"`
	Names   []string `json:"names,omitempty"`
	Classes []string `json:"classes"`
	Props   Props    `json:"props"`
}

// Snapshot dumps the graph.
func (g *Graph) Snapshot() (*Snapshot, error) {
	s := &Snapshot{Version: SnapshotVersion, Entries: make(map[string]string)}
	put := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("gamedb: snapshot %s: %w", key, err)
		}
		s.Entries[key] = string(data)
		return nil
	}

	if err := put(keyNextID, g.counter); err != nil {
		return nil, err
	}
	for id, e := range g.entities {
		rec := entityRecord{Desc: e.Desc, Names: e.Names, Classes: e.ClassList(), Props: e.Props}
		if err := put(prefixEntity+id, rec); err != nil {
			return nil, err
		}
	}
	for id, parent := range g.containedIn {
		s.Entries[prefixLocation+id] = parent
	}
	for from, out := range g.paths {
		for to, p := range out {
			if err := put(prefixPath+from+"/"+to, p); err != nil {
				return nil, err
			}
		}
	}
	for a, t := range g.follows {
		s.Entries[prefixFollows+a] = t
	}
	if err := put(keyRooms, g.rooms); err != nil {
		return nil, err
	}
	if err := put(keyPending, g.pending); err != nil {
		return nil, err
	}
	return s, nil
}

// Restore rebuilds a graph from a snapshot. Missing keys are logged and the
// defaults kept; malformed values fail the restore.
func Restore(s *Snapshot) (*Graph, error) {
	if s == nil {
		return nil, fmt.Errorf("gamedb: restore: nil snapshot")
	}
	if s.Version > SnapshotVersion {
		return nil, fmt.Errorf("gamedb: restore: snapshot version %d is newer than %d", s.Version, SnapshotVersion)
	}
	g := NewGraph()

	if raw, ok := s.Entries[keyNextID]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("gamedb: restore %s: %w", keyNextID, err)
		}
		g.counter = n
	} else {
		log.Printf("WARNING: snapshot missing %s, ids restart at 1", keyNextID)
	}

	for _, key := range sortedKeys(s.Entries, prefixEntity) {
		id := strings.TrimPrefix(key, prefixEntity)
		var rec entityRecord
		if err := json.Unmarshal([]byte(s.Entries[key]), &rec); err != nil {
			return nil, fmt.Errorf("gamedb: restore %s: %w", key, err)
		}
		e := &Entity{ID: id, Desc: rec.Desc, Names: rec.Names, Classes: make(map[Class]bool), Props: rec.Props}
		if e.Props == nil {
			e.Props = Props{}
		}
		for _, c := range rec.Classes {
			e.Classes[Class(c)] = true
		}
		g.entities[id] = e
	}
	if _, ok := s.Entries[prefixEntity+VoidID]; !ok {
		log.Printf("WARNING: snapshot missing the void entity, using defaults")
	}

	for _, id := range g.IDs() {
		if id == VoidID {
			continue
		}
		parent, ok := s.Entries[prefixLocation+id]
		if !ok || !g.Exists(parent) {
			log.Printf("WARNING: snapshot has no valid location for %s, placing it in the void", id)
			parent = VoidID
		}
		g.link(id, parent)
	}
	for _, id := range g.IDs() {
		if id != VoidID && g.IsInside(id, id) {
			return nil, invariant("restore", "containment cycle through %s", id)
		}
	}

	for _, key := range sortedKeys(s.Entries, prefixPath) {
		rest := strings.TrimPrefix(key, prefixPath)
		from, to, ok := strings.Cut(rest, "/")
		if !ok || !g.Exists(from) || !g.Exists(to) {
			log.Printf("WARNING: snapshot path %s refers to missing rooms, skipped", key)
			continue
		}
		var p Path
		if err := json.Unmarshal([]byte(s.Entries[key]), &p); err != nil {
			return nil, fmt.Errorf("gamedb: restore %s: %w", key, err)
		}
		g.SetPath(from, to, p)
	}

	for _, key := range sortedKeys(s.Entries, prefixFollows) {
		a := strings.TrimPrefix(key, prefixFollows)
		if err := g.Follow(a, s.Entries[key]); err != nil {
			log.Printf("WARNING: snapshot follow %s skipped: %v", key, err)
		}
	}

	if raw, ok := s.Entries[keyRooms]; ok {
		var rooms []string
		if err := json.Unmarshal([]byte(raw), &rooms); err != nil {
			return nil, fmt.Errorf("gamedb: restore %s: %w", keyRooms, err)
		}
		for _, r := range rooms {
			if g.Exists(r) {
				g.rooms = append(g.rooms, r)
			}
		}
	} else {
		log.Printf("WARNING: snapshot missing %s, rebuilding from classes", keyRooms)
		g.rooms = g.WithClass(ClassRoom)
	}

	if raw, ok := s.Entries[keyPending]; ok {
		var pending []string
		if err := json.Unmarshal([]byte(raw), &pending); err != nil {
			return nil, fmt.Errorf("gamedb: restore %s: %w", keyPending, err)
		}
		for _, id := range pending {
			g.Delete(id)
		}
	}
	return g, nil
}

func sortedKeys(m map[string]string, prefix string) []string {
	var out []string
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
