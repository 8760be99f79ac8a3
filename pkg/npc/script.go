package npc

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/world"
)

// ActFunc is the entry point a script defines:
//
//	func Act(ctx map[string]any) string
//
// The returned command line is run for the NPC; "" does nothing.
type ActFunc func(map[string]any) string

// ScriptExt marks a script property as a file name under Scripted.Dir.
// Script files are not Go package sources, so they avoid the .go suffix.
const ScriptExt = ".yg"

type scriptEntry struct {
	act ActFunc
	err error
}

// Scripted runs the yaegi script named by an agent's script property,
// either inline Go source or a file under Dir. Agents without a script use
// Fallback. Compiled scripts are cached by the hash of their source.
type Scripted struct {
	Dir      string
	Fallback world.Policy

	mu      sync.RWMutex
	scripts map[string]*scriptEntry
}

// NewScripted returns a script policy.
func NewScripted(dir string, fallback world.Policy) *Scripted {
	return &Scripted{Dir: dir, Fallback: fallback, scripts: make(map[string]*scriptEntry)}
}

// Act implements world.Policy.
func (s *Scripted) Act(w *world.World, agent string) {
	ref := strings.TrimSpace(w.Graph().StrProp(agent, gamedb.PropScript))
	if ref == "" {
		if s.Fallback != nil {
			s.Fallback.Act(w, agent)
		}
		return
	}
	act, err := s.scriptFor(ref)
	if err != nil {
		log.Printf("npc: script for %s: %v", agent, err)
		if s.Fallback != nil {
			s.Fallback.Act(w, agent)
		}
		return
	}
	line := s.invoke(agent, act, Context(w, agent))
	if line != "" {
		w.Do(agent, line)
	}
}

func (s *Scripted) invoke(agent string, act ActFunc, ctx map[string]any) (line string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("npc: PANIC in script for %s: %v", agent, r)
			line = ""
		}
	}()
	return strings.TrimSpace(act(ctx))
}

// Context is what a script sees about its agent.
func Context(w *world.World, agent string) map[string]any {
	g := w.Graph()
	room, _ := g.RoomOf(agent)
	var heard []string
	for _, t := range w.Router().RoomLog(room) {
		heard = append(heard, t.Text)
	}
	var carrying []string
	for _, id := range g.Contains(agent) {
		carrying = append(carrying, g.Desc(id))
	}
	return map[string]any{
		"agent":    agent,
		"desc":     g.Desc(agent),
		"persona":  g.StrProp(agent, gamedb.PropPersona),
		"room":     room,
		"health":   g.IntProp(agent, gamedb.PropHealth),
		"carrying": carrying,
		"heard":    heard,
		"actions":  w.PossibleActions(agent, nil),
		"agents":   w.AgentsIn(room),
	}
}

func (s *Scripted) source(ref string) (string, error) {
	if strings.HasSuffix(ref, ScriptExt) && !strings.ContainsAny(ref, "\n{") {
		data, err := os.ReadFile(filepath.Join(s.Dir, filepath.Clean("/"+ref)))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", ref, err)
		}
		return string(data), nil
	}
	return ref, nil
}

func (s *Scripted) scriptFor(ref string) (ActFunc, error) {
	src, err := s.source(ref)
	if err != nil {
		return nil, err
	}
	key := hashScript(src)
	s.mu.RLock()
	entry, ok := s.scripts[key]
	s.mu.RUnlock()
	if ok {
		return entry.act, entry.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.scripts[key]; ok {
		return entry.act, entry.err
	}
	act, err := compile(src)
	s.scripts[key] = &scriptEntry{act: act, err: err}
	return act, err
}

// Compile checks that src defines a usable Act function.
func Compile(src string) error {
	_, err := compile(src)
	return err
}

func compile(src string) (ActFunc, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if _, err := i.Eval(src); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	v, err := i.Eval("Act")
	if err != nil {
		return nil, fmt.Errorf("compile: Act: %w", err)
	}
	fn, ok := v.Interface().(func(map[string]any) string)
	if !ok {
		return nil, fmt.Errorf("compile: Act has unexpected type %T", v.Interface())
	}
	return fn, nil
}

func hashScript(src string) string {
	sum := sha1.Sum([]byte(src))
	return hex.EncodeToString(sum[:])
}
