package gamedb

import (
	"fmt"
	"sort"
)

// Follow makes agent follow target, replacing any previous target.
func (g *Graph) Follow(agent, target string) error {
	if !g.Exists(agent) || !g.Exists(target) {
		return fmt.Errorf("gamedb: follow %s->%s: %w", agent, target, ErrNotFound)
	}
	if agent == target {
		return invariant("follow", "%s cannot follow itself", agent)
	}
	g.Unfollow(agent)
	g.follows[agent] = target
	set, ok := g.followedBy[target]
	if !ok {
		set = make(map[string]struct{})
		g.followedBy[target] = set
	}
	set[agent] = struct{}{}
	return nil
}

// Unfollow clears agent's follow edge and returns the former target.
func (g *Graph) Unfollow(agent string) string {
	target, ok := g.follows[agent]
	if !ok {
		return ""
	}
	delete(g.follows, agent)
	if set, ok := g.followedBy[target]; ok {
		delete(set, agent)
		if len(set) == 0 {
			delete(g.followedBy, target)
		}
	}
	return target
}

// Following returns the agent that agent follows, or "".
func (g *Graph) Following(agent string) string {
	return g.follows[agent]
}

// Followers returns the sorted agents following target.
func (g *Graph) Followers(target string) []string {
	set := g.followedBy[target]
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
