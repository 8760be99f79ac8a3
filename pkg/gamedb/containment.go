package gamedb

import (
	"sort"
)

// link writes the containment edge without touching capacities.
func (g *Graph) link(id, parent string) {
	g.containedIn[id] = parent
	if id == parent {
		return
	}
	set, ok := g.contains[parent]
	if !ok {
		set = make(map[string]struct{})
		g.contains[parent] = set
	}
	set[id] = struct{}{}
}

// unlink removes id's containment edge without touching capacities.
func (g *Graph) unlink(id string) {
	parent, ok := g.containedIn[id]
	if !ok {
		return
	}
	delete(g.containedIn, id)
	if set, ok := g.contains[parent]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(g.contains, parent)
		}
	}
}

// attach links a freshly created entity under parent and charges parent's
// capacity.
func (g *Graph) attach(id, parent string) {
	size := g.IntProp(id, PropSize)
	g.IncProp(parent, PropContainSize, -size)
	g.link(id, parent)
}

// MoveUnchecked rewrites id's containment edge, keeping capacity bookkeeping
// but skipping the fit check. Restore and spawn paths use it; verbs use Move.
func (g *Graph) MoveUnchecked(id, dest string) error {
	if err := g.checkMove(id, dest); err != nil {
		return err
	}
	g.move(id, dest)
	return nil
}

// Move rewrites id's containment edge to dest. The old container's
// contain_size grows by size(id) and dest's shrinks by the same amount.
// A container without room yields a *CapacityError.
func (g *Graph) Move(id, dest string) error {
	if err := g.checkMove(id, dest); err != nil {
		return err
	}
	if g.containedIn[id] == dest {
		return nil
	}
	if !g.ObjFits(id, dest) {
		return &CapacityError{
			Entity:    id,
			Container: dest,
			Size:      g.IntProp(id, PropSize),
			Free:      g.IntProp(dest, PropContainSize),
		}
	}
	g.move(id, dest)
	return nil
}

func (g *Graph) move(id, dest string) {
	if g.containedIn[id] == dest {
		return
	}
	size := g.IntProp(id, PropSize)
	if old, ok := g.containedIn[id]; ok {
		g.IncProp(old, PropContainSize, size)
		g.unlink(id)
	}
	g.IncProp(dest, PropContainSize, -size)
	g.link(id, dest)
}

func (g *Graph) checkMove(id, dest string) error {
	if !g.Exists(id) {
		return invariant("move", "unknown entity %q", id)
	}
	if !g.Exists(dest) {
		return invariant("move", "unknown container %q", dest)
	}
	if id == VoidID {
		return invariant("move", "the void cannot be moved")
	}
	if id == dest {
		return invariant("move", "%s into itself", id)
	}
	if g.IsInside(dest, id) {
		return invariant("move", "%s into its own descendant %s", id, dest)
	}
	return nil
}

// ObjFits reports whether obj fits in container's remaining capacity.
func (g *Graph) ObjFits(obj, container string) bool {
	return g.IntProp(obj, PropSize) <= g.IntProp(container, PropContainSize)
}

// Location returns the container of id. The void is its own location.
func (g *Graph) Location(id string) (string, bool) {
	loc, ok := g.containedIn[id]
	return loc, ok
}

// Contains returns the sorted ids directly inside id.
func (g *Graph) Contains(id string) []string {
	set := g.contains[id]
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// IsInside reports whether id is anywhere below ancestor in the tree.
func (g *Graph) IsInside(id, ancestor string) bool {
	cur := id
	for i := 0; i <= len(g.entities); i++ {
		parent, ok := g.containedIn[cur]
		if !ok || parent == cur {
			return false
		}
		if parent == ancestor {
			return true
		}
		cur = parent
	}
	return false
}

// RoomOf walks up from id to the nearest room. An entity lying directly in
// the void has no room.
func (g *Graph) RoomOf(id string) (string, bool) {
	cur := id
	for i := 0; i <= len(g.entities); i++ {
		if cur != id && g.HasClass(cur, ClassRoom) {
			return cur, true
		}
		parent, ok := g.containedIn[cur]
		if !ok || parent == cur {
			return "", false
		}
		cur = parent
	}
	return "", false
}

// Delete queues id for removal at the next FlushDeletions. Queuing twice is
// a no-op and the void is never deleted.
func (g *Graph) Delete(id string) {
	if id == VoidID || !g.Exists(id) || g.pendingSet[id] {
		return
	}
	g.pendingSet[id] = true
	g.pending = append(g.pending, id)
}

// Pending returns the ids queued for deletion.
func (g *Graph) Pending() []string {
	return append([]string(nil), g.pending...)
}

// IsPending reports whether id is queued for deletion.
func (g *Graph) IsPending(id string) bool {
	return g.pendingSet[id]
}

// FlushDeletions removes every queued entity together with everything it
// contains. Paths touching a removed entity are detached and its followers
// stop following. Returns the removed ids in removal order.
func (g *Graph) FlushDeletions() []string {
	var removed []string
	for i := 0; i < len(g.pending); i++ {
		id := g.pending[i]
		if !g.Exists(id) {
			continue
		}
		for _, child := range g.Contains(id) {
			g.Delete(child)
		}
		g.detachPaths(id)
		for _, f := range g.Followers(id) {
			g.Unfollow(f)
		}
		g.Unfollow(id)
		if parent, ok := g.containedIn[id]; ok {
			g.IncProp(parent, PropContainSize, g.IntProp(id, PropSize))
			g.unlink(id)
		}
		g.removeRoom(id)
		delete(g.entities, id)
		removed = append(removed, id)
		if g.hooks.Deleted != nil {
			g.hooks.Deleted(id)
		}
	}
	g.pending = nil
	g.pendingSet = make(map[string]bool)
	return removed
}

func (g *Graph) removeRoom(id string) {
	for i, r := range g.rooms {
		if r == id {
			g.rooms = append(g.rooms[:i], g.rooms[i+1:]...)
			return
		}
	}
}
