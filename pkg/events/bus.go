package events

import (
	"sync"
)

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus is a per-agent pub/sub event bus with support for global subscribers.
// The router emits one event per delivered observation; each subscriber
// (telnet session, websocket, scrollback writer) encodes it per-transport.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
	global      []Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific agent's events.
func (b *Bus) Subscribe(agent string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[agent] = append(b.subscribers[agent], sub)
}

// Unsubscribe removes a subscriber for a specific agent.
func (b *Bus) Unsubscribe(agent string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[agent]
	for i, s := range subs {
		if s == sub {
			b.subscribers[agent] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[agent]) == 0 {
		delete(b.subscribers, agent)
	}
}

// Move re-keys every subscriber of one agent to another, used when a
// player's session is attached to a new body.
func (b *Bus) Move(from, to string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[from]
	if len(subs) == 0 {
		return
	}
	delete(b.subscribers, from)
	b.subscribers[to] = append(b.subscribers[to], subs...)
}

// SubscribeGlobal registers a subscriber that receives all events.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, sub)
}

// Emit sends an event to the agent named in ev.Agent and all global subscribers.
func (b *Bus) Emit(ev Event) {
	if ev.Kind == "" {
		ev.Kind = ev.Type.String()
	}
	b.mu.RLock()
	var subs []Subscriber
	if ev.Agent != "" {
		subs = b.subscribers[ev.Agent]
	}
	globals := b.global
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
	for _, s := range globals {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// EmitToAgent sends an event to a specific agent (overriding ev.Agent).
func (b *Bus) EmitToAgent(agent string, ev Event) {
	ev.Agent = agent
	b.Emit(ev)
}

// Subscribers returns the number of subscribers for an agent.
func (b *Bus) Subscribers(agent string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[agent])
}

// Cleanup removes closed subscribers from all lists.
func (b *Bus) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for agent, subs := range b.subscribers {
		var active []Subscriber
		for _, s := range subs {
			if !s.Closed() {
				active = append(active, s)
			}
		}
		if len(active) == 0 {
			delete(b.subscribers, agent)
		} else {
			b.subscribers[agent] = active
		}
	}

	var activeGlobal []Subscriber
	for _, s := range b.global {
		if !s.Closed() {
			activeGlobal = append(activeGlobal, s)
		}
	}
	b.global = activeGlobal
}
