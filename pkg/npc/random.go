// Package npc holds the policies that drive non-player agents.
package npc

import (
	"math/rand"
	"sync"

	"github.com/crystal-mush/graphworld/pkg/world"
)

// DefaultProbability is how often a random NPC acts on a tick.
const DefaultProbability = 0.3

// DefaultVerbs is what random NPCs choose from. Speech and private verbs
// are left out.
var DefaultVerbs = []string{
	"go", "get", "drop", "put", "give", "wear", "wield", "eat", "drink",
	"hug", "follow", "nod", "smile", "wave", "shrug", "laugh", "sigh",
}

// Random acts with probability Prob per tick, picking uniformly among the
// possible actions for Verbs.
type Random struct {
	Prob  float64
	Verbs []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Random policy. A nil source seeds from the clock.
func NewRandom(prob float64, src rand.Source) *Random {
	if prob <= 0 {
		prob = DefaultProbability
	}
	r := &Random{Prob: prob, Verbs: DefaultVerbs}
	if src != nil {
		r.rng = rand.New(src)
	}
	return r
}

func (r *Random) float() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng == nil {
		return rand.Float64()
	}
	return r.rng.Float64()
}

func (r *Random) intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng == nil {
		return rand.Intn(n)
	}
	return r.rng.Intn(n)
}

// Act implements world.Policy.
func (r *Random) Act(w *world.World, agent string) {
	if r.float() >= r.Prob {
		return
	}
	acts := w.PossibleActions(agent, r.Verbs)
	if len(acts) == 0 {
		return
	}
	w.Do(agent, acts[r.intn(len(acts))])
}
