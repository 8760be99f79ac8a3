package content

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/crystal-mush/graphworld/pkg/world"
)

// Populator spawns NPCs from templates, round-robin, into random rooms.
type Populator struct {
	Templates []Template

	mu   sync.Mutex
	next int
	rng  *rand.Rand
}

// NewPopulator returns a populator over the pack's templates.
func NewPopulator(p *Pack, src rand.Source) *Populator {
	if src == nil {
		src = rand.NewSource(rand.Int63())
	}
	return &Populator{Templates: p.Templates, rng: rand.New(src)}
}

// SetTemplates replaces the templates future spawns draw from.
func (p *Populator) SetTemplates(ts []Template) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Templates = ts
	p.next = 0
}

// SpawnReplacementNPC implements world.Populator.
func (p *Populator) SpawnReplacementNPC(w *world.World) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Templates) == 0 {
		return "", errors.New("content: no NPC templates")
	}
	rooms := w.Graph().Rooms()
	if len(rooms) == 0 {
		return "", errors.New("content: no rooms to spawn into")
	}
	t := p.Templates[p.next%len(p.Templates)]
	p.next++
	id, err := createAgent(w.Graph(), t)
	if err != nil {
		return "", fmt.Errorf("content: spawn %s: %w", t.Desc, err)
	}
	room := rooms[p.rng.Intn(len(rooms))]
	if err := w.Graph().Move(id, room); err != nil {
		return "", fmt.Errorf("content: place %s: %w", id, err)
	}
	return id, nil
}
