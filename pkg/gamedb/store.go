package gamedb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Hooks lets owners of per-entity side state follow the graph's lifecycle.
type Hooks struct {
	AgentCreated func(id string)
	RoomCreated  func(id string)
	Deleted      func(id string)
}

// Graph is the world graph: the entity store plus the containment, path and
// follow relations between entities. Adjacency maps hold ids only.
//
// Graph is not safe for concurrent use; callers serialize access.
type Graph struct {
	// UniqueIDs appends a ULID suffix to generated ids.
	UniqueIDs bool

	entities map[string]*Entity
	counter  int

	containedIn map[string]string
	contains    map[string]map[string]struct{}

	paths map[string]map[string]*Path

	follows    map[string]string
	followedBy map[string]map[string]struct{}

	rooms      []string
	pending    []string
	pendingSet map[string]bool

	hooks Hooks
}

// NewGraph creates a graph holding only the void root.
func NewGraph() *Graph {
	g := &Graph{
		entities:    make(map[string]*Entity),
		containedIn: make(map[string]string),
		contains:    make(map[string]map[string]struct{}),
		paths:       make(map[string]map[string]*Path),
		follows:     make(map[string]string),
		followedBy:  make(map[string]map[string]struct{}),
		pendingSet:  make(map[string]bool),
	}
	g.entities[VoidID] = &Entity{
		ID:      VoidID,
		Desc:    "the void",
		Classes: map[Class]bool{ClassVoid: true},
		Props: Props{
			PropSize:        Int(0),
			PropContainSize: Int(1 << 40),
			PropIsPlayer:    Bool(false),
		},
	}
	g.containedIn[VoidID] = VoidID
	return g
}

// SetHooks installs lifecycle hooks, replacing any previous ones.
func (g *Graph) SetHooks(h Hooks) {
	g.hooks = h
}

// Slug lowercases s and reduces it to [a-z0-9_].
func Slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		default:
			if !underscore && b.Len() > 0 {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return "entity"
	}
	return out
}

// Create adds an entity with a generated id and places it in the void.
// Props override the defaults size=1, contain_size=0 (RoomCapacity for
// rooms) and is_player=false.
func (g *Graph) Create(desc string, props Props, classes ...Class) (string, error) {
	g.counter++
	id := fmt.Sprintf("%s_%d", Slug(desc), g.counter)
	if g.UniqueIDs {
		id += "_" + strings.ToLower(ulid.Make().String())
	}
	return g.CreateWithID(id, desc, props, classes...)
}

// CreateWithID adds an entity under a caller-chosen id.
func (g *Graph) CreateWithID(id, desc string, props Props, classes ...Class) (string, error) {
	if id == "" || strings.Contains(id, "/") {
		return "", invariant("create", "illegal id %q", id)
	}
	if _, ok := g.entities[id]; ok {
		return "", &DuplicateIDError{ID: id}
	}
	e := &Entity{
		ID:      id,
		Desc:    desc,
		Classes: make(map[Class]bool, len(classes)),
		Props: Props{
			PropSize:        Int(1),
			PropContainSize: Int(0),
			PropIsPlayer:    Bool(false),
		},
	}
	for _, c := range classes {
		e.Classes[c] = true
	}
	if e.Classes[ClassRoom] {
		e.Props[PropContainSize] = Int(RoomCapacity)
	}
	for k, v := range props {
		e.Props[k] = v
	}
	g.entities[id] = e
	g.attach(id, VoidID)

	if e.Classes[ClassRoom] {
		g.rooms = append(g.rooms, id)
		if g.hooks.RoomCreated != nil {
			g.hooks.RoomCreated(id)
		}
	}
	if e.Classes[ClassAgent] && g.hooks.AgentCreated != nil {
		g.hooks.AgentCreated(id)
	}
	return id, nil
}

// Exists reports whether id names a live entity.
func (g *Graph) Exists(id string) bool {
	_, ok := g.entities[id]
	return ok
}

// Entity returns the entity with the given id. The result must be treated as
// read-only; use the setters to mutate it.
func (g *Graph) Entity(id string) (*Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// IDs returns every live entity id, void included, in sorted order.
func (g *Graph) IDs() []string {
	out := make([]string, 0, len(g.entities))
	for id := range g.entities {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of live entities, void included.
func (g *Graph) Len() int {
	return len(g.entities)
}

// Rooms returns the room registry in creation order.
func (g *Graph) Rooms() []string {
	return append([]string(nil), g.rooms...)
}

// Desc returns an entity's display description.
func (g *Graph) Desc(id string) string {
	if e, ok := g.entities[id]; ok {
		return e.Desc
	}
	return ""
}

// SetDesc replaces an entity's display description.
func (g *Graph) SetDesc(id, desc string) error {
	e, ok := g.entities[id]
	if !ok {
		return fmt.Errorf("gamedb: set desc %s: %w", id, ErrNotFound)
	}
	e.Desc = desc
	return nil
}

// Names returns an entity's alternate names.
func (g *Graph) Names(id string) []string {
	if e, ok := g.entities[id]; ok {
		return e.Names
	}
	return nil
}

// AddName appends an alternate name if it is not already present.
func (g *Graph) AddName(id, name string) error {
	e, ok := g.entities[id]
	if !ok {
		return fmt.Errorf("gamedb: add name %s: %w", id, ErrNotFound)
	}
	for _, n := range e.Names {
		if strings.EqualFold(n, name) {
			return nil
		}
	}
	e.Names = append(e.Names, name)
	return nil
}

// Prop returns a property value.
func (g *Graph) Prop(id string, key PropKey) (Value, bool) {
	e, ok := g.entities[id]
	if !ok {
		return Value{}, false
	}
	v, ok := e.Props[key]
	return v, ok
}

// IntProp returns a property as an int, 0 when missing.
func (g *Graph) IntProp(id string, key PropKey) int {
	v, _ := g.Prop(id, key)
	return v.AsInt()
}

// BoolProp returns a property as a bool, false when missing.
func (g *Graph) BoolProp(id string, key PropKey) bool {
	v, _ := g.Prop(id, key)
	return v.AsBool()
}

// StrProp returns a property as a string, "" when missing.
func (g *Graph) StrProp(id string, key PropKey) string {
	v, ok := g.Prop(id, key)
	if !ok {
		return ""
	}
	return v.AsString()
}

// SetProp sets a property.
func (g *Graph) SetProp(id string, key PropKey, v Value) error {
	e, ok := g.entities[id]
	if !ok {
		return fmt.Errorf("gamedb: set %s.%s: %w", id, key, ErrNotFound)
	}
	e.Props[key] = v
	return nil
}

// IncProp adds delta to an integer property and returns the new value.
func (g *Graph) IncProp(id string, key PropKey, delta int) (int, error) {
	e, ok := g.entities[id]
	if !ok {
		return 0, fmt.Errorf("gamedb: inc %s.%s: %w", id, key, ErrNotFound)
	}
	n := e.Props[key].AsInt() + delta
	e.Props[key] = Int(n)
	return n, nil
}

// DeleteProp removes a property.
func (g *Graph) DeleteProp(id string, key PropKey) {
	if e, ok := g.entities[id]; ok {
		delete(e.Props, key)
	}
}

// HasClass reports whether id carries tag c.
func (g *Graph) HasClass(id string, c Class) bool {
	e, ok := g.entities[id]
	return ok && e.Classes[c]
}

// AddClass tags an entity. Adding a present tag is a no-op.
func (g *Graph) AddClass(id string, c Class) error {
	e, ok := g.entities[id]
	if !ok {
		return fmt.Errorf("gamedb: add class %s: %w", id, ErrNotFound)
	}
	if e.Classes[c] {
		return nil
	}
	e.Classes[c] = true
	if c == ClassAgent && g.hooks.AgentCreated != nil {
		g.hooks.AgentCreated(id)
	}
	return nil
}

// RemoveClass removes a tag. Removing an absent tag is a no-op.
func (g *Graph) RemoveClass(id string, c Class) error {
	e, ok := g.entities[id]
	if !ok {
		return fmt.Errorf("gamedb: remove class %s: %w", id, ErrNotFound)
	}
	delete(e.Classes, c)
	return nil
}

// WithClass returns the sorted ids of every entity tagged c.
func (g *Graph) WithClass(c Class) []string {
	var out []string
	for id, e := range g.entities {
		if e.Classes[c] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
