// Package router buffers narration per agent and fans actions out to the
// agents that witness them.
package router

import (
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/graphworld/pkg/events"
	"github.com/oklog/ulid/v2"
)

// DefaultRoomLogSize bounds each room's conversation buffer.
const DefaultRoomLogSize = 50

// Roster answers which agents exist and where. The world implements it.
type Roster interface {
	AgentsIn(room string) []string
	Agents() []string
}

// Formatter renders an action for one viewer. An empty result falls back to
// the action's Text.
type Formatter func(viewer string, act Action) string

// Turn is one entry of a room's conversation buffer.
type Turn struct {
	Actor  string    `json:"actor"`
	Caller string    `json:"caller"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

type mailbox struct {
	mu      sync.Mutex
	text    []string
	actions []Action
}

// Router owns every agent's outbound buffers and every room's conversation
// buffer. Send and Broadcast run on the world goroutine; Drain may be called
// concurrently from transport goroutines.
type Router struct {
	bus     *events.Bus
	roster  Roster
	format  Formatter
	logSize int

	mu    sync.Mutex
	boxes map[string]*mailbox
	rooms map[string][]Turn
}

// New creates a router delivering through bus.
func New(bus *events.Bus, roster Roster, logSize int) *Router {
	if logSize <= 0 {
		logSize = DefaultRoomLogSize
	}
	return &Router{
		bus:     bus,
		roster:  roster,
		logSize: logSize,
		boxes:   make(map[string]*mailbox),
		rooms:   make(map[string][]Turn),
	}
}

// SetFormatter installs the per-viewer renderer.
func (r *Router) SetFormatter(f Formatter) {
	r.format = f
}

// Bus returns the delivery bus.
func (r *Router) Bus() *events.Bus {
	return r.bus
}

func (r *Router) box(agent string) *mailbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boxes[agent]
	if !ok {
		b = &mailbox{}
		r.boxes[agent] = b
	}
	return b
}

// Reset empties an agent's buffers.
func (r *Router) Reset(agent string) {
	b := r.box(agent)
	b.mu.Lock()
	b.text = nil
	b.actions = nil
	b.mu.Unlock()
}

// Forget drops an agent's buffers entirely.
func (r *Router) Forget(agent string) {
	r.mu.Lock()
	delete(r.boxes, agent)
	r.mu.Unlock()
}

// RegisterRoom creates an empty conversation buffer for room.
func (r *Router) RegisterRoom(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = nil
	}
}

// ForgetRoom drops a room's conversation buffer.
func (r *Router) ForgetRoom(room string) {
	r.mu.Lock()
	delete(r.rooms, room)
	r.mu.Unlock()
}

// Send appends text (and the action, if any) to agent's buffers and then
// hands an observation to the agent's delivery subscribers.
func (r *Router) Send(agent, text string, act *Action) Observation {
	obs := Observation{ID: ulid.Make().String(), Text: text}
	b := r.box(agent)
	b.mu.Lock()
	b.text = append(b.text, text)
	if act != nil {
		b.actions = append(b.actions, *act)
		obs.QuickReplies = act.QuickReplies()
	}
	b.mu.Unlock()

	ev := events.Event{
		ID:           obs.ID,
		Type:         events.EvSystem,
		Agent:        agent,
		Text:         text,
		QuickReplies: obs.QuickReplies,
	}
	if act != nil {
		ev.Type = eventType(act.Caller)
		ev.Source = act.Actor()
		ev.Room = act.RoomID
	}
	r.bus.Emit(ev)
	return obs
}

func (r *Router) render(viewer string, act Action) string {
	if r.format != nil {
		if s := r.format(viewer, act); s != "" {
			return s
		}
	}
	return act.Text
}

// BroadcastToRoom narrates act to the primary actor first, records the turn
// in the room's conversation buffer, then narrates to every other agent in
// the room. Excluded agents receive nothing.
func (r *Router) BroadcastToRoom(act Action, exclude ...string) {
	skip := make(map[string]bool, len(exclude)+1)
	for _, e := range exclude {
		skip[e] = true
	}
	actor := act.Actor()
	if actor != "" && !skip[actor] {
		if text := r.render(actor, act); text != "" {
			r.Send(actor, text, &act)
		}
	}
	if actor != "" {
		skip[actor] = true
	}
	r.record(act)

	for _, agent := range r.roster.AgentsIn(act.RoomID) {
		if skip[agent] {
			continue
		}
		if text := r.render(agent, act); text != "" {
			r.Send(agent, text, &act)
		}
	}
}

// BroadcastToAll narrates act to every agent in the world.
func (r *Router) BroadcastToAll(act Action, exclude ...string) {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	for _, agent := range r.roster.Agents() {
		if skip[agent] {
			continue
		}
		if text := r.render(agent, act); text != "" {
			r.Send(agent, text, &act)
		}
	}
}

func (r *Router) record(act Action) {
	if act.RoomID == "" || act.Text == "" {
		return
	}
	turn := Turn{Actor: act.Actor(), Caller: act.Caller, Text: act.Text, At: time.Now()}
	r.mu.Lock()
	buf := append(r.rooms[act.RoomID], turn)
	if len(buf) > r.logSize {
		buf = append([]Turn(nil), buf[len(buf)-r.logSize:]...)
	}
	r.rooms[act.RoomID] = buf
	r.mu.Unlock()

	r.bus.Emit(events.Event{
		ID:     ulid.Make().String(),
		Type:   events.EvRoomLog,
		Source: turn.Actor,
		Room:   act.RoomID,
		Text:   turn.Text,
		Data:   map[string]any{"caller": act.Caller},
	})
}

// RoomLog returns a copy of a room's conversation buffer, oldest first.
func (r *Router) RoomLog(room string) []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Turn(nil), r.rooms[room]...)
}

// Drain returns and clears an agent's buffered narration, one line per send.
func (r *Router) Drain(agent string) string {
	b := r.box(agent)
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.Join(b.text, "\n")
	b.text = nil
	return text
}

// DrainActions returns and clears an agent's undelivered action records.
func (r *Router) DrainActions(agent string) []Action {
	b := r.box(agent)
	b.mu.Lock()
	defer b.mu.Unlock()
	acts := b.actions
	b.actions = nil
	return acts
}

// Buffered reports how many narration lines wait for agent.
func (r *Router) Buffered(agent string) int {
	b := r.box(agent)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.text)
}
