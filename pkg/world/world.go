// Package world runs the text world: it dispatches verb commands against the
// graph, narrates results through the router, and advances NPCs on a clock.
package world

import (
	"sort"
	"sync"
	"time"

	"github.com/crystal-mush/graphworld/pkg/events"
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/router"
)

// DefaultDecayTicks is how many ticks a corpse lasts before it crumbles.
const DefaultDecayTicks = 20

// DefaultHealth is assumed for agents without a health property.
const DefaultHealth = 6

// Policy decides what an NPC does on its turn. Act runs inside a tick with
// the world lock held and must use the lock-free methods (Do,
// PossibleActions) rather than Execute.
type Policy interface {
	Act(w *World, agent string)
}

// Populator supplies replacement NPCs when the population drops.
type Populator interface {
	SpawnReplacementNPC(w *World) (string, error)
}

// UnhandledFunc is offered verbs the registry cannot parse. Returning true
// claims the command.
type UnhandledFunc func(verb string, args []string, actor string) bool

// Observer receives timing for each command and tick. Metrics implement it.
type Observer interface {
	CommandDone(verb string, ok bool, d time.Duration)
	TickDone(d time.Duration)
}

// Config tunes the world.
type Config struct {
	// InitialNPCs is the population the clock maintains. Zero means the
	// number of live NPCs at the first tick.
	InitialNPCs int
	// DecayTicks is how long a corpse lasts.
	DecayTicks int
	// RoomLogSize bounds each room's conversation buffer.
	RoomLogSize int
	// SuggestVerbs appends "did you mean" hints to unknown verbs.
	SuggestVerbs bool
}

// World is the single authoritative world. Every graph mutation happens
// with mu held: Execute and Tick take it, Do assumes it.
type World struct {
	mu sync.Mutex

	g        *gamedb.Graph
	router   *router.Router
	registry *Registry
	cfg      Config

	policies      map[string]Policy
	defaultPolicy Policy
	populator     Populator
	unhandled     []UnhandledFunc
	observer      Observer

	players     map[string]string // player id -> agent
	agentPlayer map[string]string // agent -> player id
	visited     map[string]map[string]bool
	lastRoom    map[string]string

	frozen      bool
	ticks       int
	initialNPCs int
}

// New wraps a graph in a world. The registry is consulted for every command
// and for rendering observations.
func New(g *gamedb.Graph, reg *Registry, bus *events.Bus, cfg Config) *World {
	if cfg.DecayTicks <= 0 {
		cfg.DecayTicks = DefaultDecayTicks
	}
	w := &World{
		g:           g,
		registry:    reg,
		cfg:         cfg,
		policies:    make(map[string]Policy),
		players:     make(map[string]string),
		agentPlayer: make(map[string]string),
		visited:     make(map[string]map[string]bool),
		lastRoom:    make(map[string]string),
		initialNPCs: cfg.InitialNPCs,
	}
	w.router = router.New(bus, w, cfg.RoomLogSize)
	w.router.SetFormatter(w.format)
	w.attach(g)
	return w
}

// attach installs the graph lifecycle hooks and registers buffers for what
// already exists.
func (w *World) attach(g *gamedb.Graph) {
	w.g = g
	g.SetHooks(gamedb.Hooks{
		AgentCreated: w.router.Reset,
		RoomCreated:  w.router.RegisterRoom,
		Deleted:      w.forget,
	})
	for _, r := range g.Rooms() {
		w.router.RegisterRoom(r)
	}
	for _, a := range g.WithClass(gamedb.ClassAgent) {
		w.router.Reset(a)
	}
}

func (w *World) forget(id string) {
	w.router.Forget(id)
	w.router.ForgetRoom(id)
	delete(w.policies, id)
	delete(w.visited, id)
	delete(w.lastRoom, id)
	if pid, ok := w.agentPlayer[id]; ok {
		delete(w.agentPlayer, id)
		delete(w.players, pid)
	}
}

// Graph returns the world graph. Callers outside a tick or command must
// hold the lock via Locked.
func (w *World) Graph() *gamedb.Graph { return w.g }

// Router returns the message router.
func (w *World) Router() *router.Router { return w.router }

// Registry returns the verb registry.
func (w *World) Registry() *Registry { return w.registry }

// Config returns the world configuration.
func (w *World) Config() Config { return w.cfg }

// Locked runs fn with the world lock held.
func (w *World) Locked(fn func(w *World)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(w)
}

// SetObserver installs timing callbacks.
func (w *World) SetObserver(o Observer) {
	w.mu.Lock()
	w.observer = o
	w.mu.Unlock()
}

// SetPopulator installs the replacement-NPC source.
func (w *World) SetPopulator(p Populator) {
	w.mu.Lock()
	w.populator = p
	w.mu.Unlock()
}

// SetDefaultPolicy sets the policy used by NPCs without their own.
func (w *World) SetDefaultPolicy(p Policy) {
	w.mu.Lock()
	w.defaultPolicy = p
	w.mu.Unlock()
}

// SetPolicy assigns a policy to one NPC. Callers must hold the lock when
// invoked outside a tick, e.g. from a Populator.
func (w *World) SetPolicy(agent string, p Policy) {
	w.policies[agent] = p
}

func (w *World) policyFor(agent string) Policy {
	if p, ok := w.policies[agent]; ok {
		return p
	}
	return w.defaultPolicy
}

// OnUnhandled appends a callback to the unhandled-verb chain.
func (w *World) OnUnhandled(fn UnhandledFunc) {
	w.mu.Lock()
	w.unhandled = append(w.unhandled, fn)
	w.mu.Unlock()
}

// Freeze stops the clock; Thaw restarts it.
func (w *World) Freeze() {
	w.mu.Lock()
	w.frozen = true
	w.mu.Unlock()
}

func (w *World) Thaw() {
	w.mu.Lock()
	w.frozen = false
	w.mu.Unlock()
}

// SetFrozen is Freeze or Thaw for callers already holding the lock, such
// as unhandled-verb callbacks.
func (w *World) SetFrozen(frozen bool) {
	w.frozen = frozen
}

// Frozen reports whether the clock is stopped.
func (w *World) Frozen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frozen
}

// AgentsIn returns the agents directly inside room. It implements
// router.Roster.
func (w *World) AgentsIn(room string) []string {
	var out []string
	for _, id := range w.g.Contains(room) {
		if w.g.HasClass(id, gamedb.ClassAgent) {
			out = append(out, id)
		}
	}
	return out
}

// Agents returns every agent. It implements router.Roster.
func (w *World) Agents() []string {
	return w.g.WithClass(gamedb.ClassAgent)
}

// IsAlive reports whether id is a living agent.
func (w *World) IsAlive(id string) bool {
	return w.g.HasClass(id, gamedb.ClassAgent) && !w.g.BoolProp(id, gamedb.PropDead)
}

// LiveNPCs returns living agents not controlled by a human.
func (w *World) LiveNPCs() []string {
	var out []string
	for _, id := range w.Agents() {
		if w.IsAlive(id) && !w.g.BoolProp(id, gamedb.PropHuman) {
			out = append(out, id)
		}
	}
	return out
}

// Tell narrates text to one agent only.
func (w *World) Tell(agent, text string) {
	w.router.Send(agent, text, nil)
}

// Broadcast narrates an action to its room.
func (w *World) Broadcast(act router.Action) {
	w.router.BroadcastToRoom(act, act.Exclude...)
}

// PlayerAgent returns the body a player currently controls.
func (w *World) PlayerAgent(playerID string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.players[playerID]
	return a, ok
}

// BodyOf is PlayerAgent for callers already holding the lock.
func (w *World) BodyOf(playerID string) (string, bool) {
	a, ok := w.players[playerID]
	return a, ok
}

// PlayerOf returns the player controlling agent. The caller holds the lock.
func (w *World) PlayerOf(agent string) (string, bool) {
	pid, ok := w.agentPlayer[agent]
	return pid, ok
}

// Players returns the player-id to agent mapping.
func (w *World) Players() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.players))
	for k, v := range w.players {
		out[k] = v
	}
	return out
}

// Visited returns the rooms an agent has been in, sorted.
func (w *World) Visited(agent string) []string {
	out := make([]string, 0, len(w.visited[agent]))
	for r := range w.visited[agent] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (w *World) visit(agent, room string) bool {
	set, ok := w.visited[agent]
	if !ok {
		set = make(map[string]bool)
		w.visited[agent] = set
	}
	seen := set[room]
	set[room] = true
	return seen
}

// Ticks returns how many ticks have run.
func (w *World) Ticks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ticks
}

// Stats is a point-in-time summary for metrics.
type Stats struct {
	Entities int
	Rooms    int
	LiveNPCs int
	Humans   int
	Corpses  int
}

// Stats summarizes the world.
func (w *World) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Stats{Entities: w.g.Len(), Rooms: len(w.g.Rooms()), LiveNPCs: len(w.LiveNPCs())}
	for _, a := range w.Agents() {
		if w.g.BoolProp(a, gamedb.PropHuman) {
			s.Humans++
		}
	}
	for _, id := range w.g.IDs() {
		if w.g.BoolProp(id, gamedb.PropDead) {
			s.Corpses++
		}
	}
	return s
}
