package world

import (
	"sort"
	"strings"

	"github.com/crystal-mush/graphworld/pkg/router"
)

// Verb is one command the world understands. Argument lists always carry
// the acting agent at index 0 followed by resolved entity ids (or free text
// for speech verbs).
type Verb interface {
	// Name is the canonical verb, used as router.Action.Caller.
	Name() string
	// Arities lists the target counts PossibleActions enumerates. Verbs
	// that take free text return nil.
	Arities() []int
	// ValidArgs reports whether args satisfy the verb's preconditions.
	ValidArgs(w *World, args []string) bool
	// ParseTextToArgs binds the tokens after the verb to entity ids. On
	// failure errText explains what could not be found.
	ParseTextToArgs(w *World, actor string, tokens []string) (args []string, errText string, ok bool)
	// CanonicalForm renders args as a command line that parses back to the
	// same action.
	CanonicalForm(w *World, args []string) string
	// Handle performs the action. It narrates its own precondition
	// failures and returns the actions to broadcast on success.
	Handle(w *World, args []string) ([]router.Action, bool)
	// FormatObservation renders act for one viewer.
	FormatObservation(w *World, viewer string, act router.Action) string
}

// Registry maps verb names and aliases to verbs.
type Registry struct {
	verbs   map[string]Verb
	aliases map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{verbs: make(map[string]Verb), aliases: make(map[string]string)}
}

// Register adds v under its name and any aliases. A later registration of
// the same name replaces the earlier one.
func (r *Registry) Register(v Verb, aliases ...string) {
	r.verbs[v.Name()] = v
	for _, a := range aliases {
		r.aliases[strings.ToLower(a)] = v.Name()
	}
}

// Lookup finds a verb by name or alias.
func (r *Registry) Lookup(name string) Verb {
	name = strings.ToLower(name)
	if v, ok := r.verbs[name]; ok {
		return v
	}
	if canon, ok := r.aliases[name]; ok {
		return r.verbs[canon]
	}
	return nil
}

// Names returns the canonical verb names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.verbs))
	for n := range r.verbs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Words returns every name and alias, sorted. Used for suggestions.
func (r *Registry) Words() []string {
	out := r.Names()
	for a := range r.aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
