// Package content loads YAML world packs and builds them into a graph.
package content

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
)

// Pack is a world definition file.
//
// Example:
//
//	world:
//	  name: "The Keep"
//	rooms:
//	  - key: hall
//	    desc: hall
//	    text: "A drafty hall."
//	paths:
//	  - {from: hall, to: yard, label: north, back: south}
//	agents:
//	  - {key: guard, desc: guard, in: hall}
type Pack struct {
	World     Meta       `yaml:"world"`
	Rooms     []Room     `yaml:"rooms"`
	Paths     []PathDef  `yaml:"paths"`
	Objects   []Object   `yaml:"objects"`
	Agents    []Agent    `yaml:"agents"`
	Templates []Template `yaml:"templates"`
}

// Meta describes the pack.
type Meta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Room is one location.
type Room struct {
	Key   string         `yaml:"key"`
	Desc  string         `yaml:"desc"`
	Text  string         `yaml:"text"`
	Extra string         `yaml:"extra"`
	Names []string       `yaml:"names"`
	Props map[string]any `yaml:"props"`
}

// PathDef joins two rooms. An empty Back makes the path one-way.
type PathDef struct {
	From       string `yaml:"from"`
	To         string `yaml:"to"`
	Label      string `yaml:"label"`
	Back       string `yaml:"back"`
	LockedWith string `yaml:"locked_with"` // object key
	Locked     bool   `yaml:"locked"`
	FullLabel  bool   `yaml:"full_label"`
}

// Object is an item placed in a room, container or agent.
type Object struct {
	Key     string         `yaml:"key"`
	Desc    string         `yaml:"desc"`
	Text    string         `yaml:"text"`
	Names   []string       `yaml:"names"`
	Classes []string       `yaml:"classes"`
	In      string         `yaml:"in"`
	Props   map[string]any `yaml:"props"`
}

// Agent is a character placed in a room.
type Agent struct {
	Key     string         `yaml:"key"`
	Desc    string         `yaml:"desc"`
	Text    string         `yaml:"text"`
	Names   []string       `yaml:"names"`
	Persona string         `yaml:"persona"`
	Script  string         `yaml:"script"`
	In      string         `yaml:"in"`
	Props   map[string]any `yaml:"props"`
}

// Template is an NPC the population can spawn, with what it carries.
type Template struct {
	Desc    string         `yaml:"desc"`
	Text    string         `yaml:"text"`
	Names   []string       `yaml:"names"`
	Persona string         `yaml:"persona"`
	Script  string         `yaml:"script"`
	Props   map[string]any `yaml:"props"`
	Carries []Object       `yaml:"carries"`
}

// Agent defaults applied before pack props.
const (
	DefaultCarry = 20
	DefaultSpeed = 5
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("content: invalid pack")

// LoadFile reads and validates a pack from disk.
func LoadFile(path string) (*Pack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("content: open %q: %w", path, err)
	}
	defer f.Close()
	p, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("content: %q: %w", path, err)
	}
	return p, nil
}

// Load parses and validates a pack. Unknown keys are rejected.
func Load(r io.Reader) (*Pack, error) {
	var p Pack
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("content: decode yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks keys are unique and every reference resolves. It reports
// all problems at once.
func (p *Pack) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	kinds := make(map[string]string)
	define := func(kind, key, desc string) {
		switch {
		case key == "":
			bad("%s %q has no key", kind, desc)
		case strings.Contains(key, "/"):
			bad("%s key %q contains '/'", kind, key)
		case kinds[key] != "":
			bad("duplicate key %q (%s and %s)", key, kinds[key], kind)
		default:
			kinds[key] = kind
		}
		if desc == "" {
			bad("%s %q has no desc", kind, key)
		}
	}
	for _, r := range p.Rooms {
		define("room", r.Key, r.Desc)
	}
	for _, o := range p.Objects {
		define("object", o.Key, o.Desc)
		for _, c := range o.Classes {
			if !knownClass(c) {
				bad("object %q has unknown class %q", o.Key, c)
			}
		}
	}
	for _, a := range p.Agents {
		define("agent", a.Key, a.Desc)
	}

	for _, o := range p.Objects {
		if o.In != "" && kinds[o.In] == "" {
			bad("object %q is in unknown %q", o.Key, o.In)
		}
		if o.In == o.Key && o.Key != "" {
			bad("object %q is inside itself", o.Key)
		}
	}
	for _, a := range p.Agents {
		if a.In != "" && kinds[a.In] != "room" {
			bad("agent %q must be in a room, not %q", a.Key, a.In)
		}
	}
	for _, pd := range p.Paths {
		if kinds[pd.From] != "room" || kinds[pd.To] != "room" {
			bad("path %s->%s joins unknown rooms", pd.From, pd.To)
		}
		if pd.Label == "" {
			bad("path %s->%s has no label", pd.From, pd.To)
		}
		if pd.LockedWith != "" && kinds[pd.LockedWith] != "object" {
			bad("path %s->%s locked with unknown object %q", pd.From, pd.To, pd.LockedWith)
		}
		if pd.Locked && pd.LockedWith == "" {
			bad("path %s->%s is locked without a key", pd.From, pd.To)
		}
	}
	for i, t := range p.Templates {
		if t.Desc == "" {
			bad("template %d has no desc", i)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func knownClass(c string) bool {
	switch gamedb.Class(c) {
	case gamedb.ClassObject, gamedb.ClassContainer, gamedb.ClassWearable,
		gamedb.ClassWieldable, gamedb.ClassFood, gamedb.ClassDrink:
		return true
	}
	return false
}

func props(raw map[string]any) (gamedb.Props, error) {
	out := make(gamedb.Props, len(raw))
	for k, v := range raw {
		val, err := gamedb.ValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("prop %s: %w", k, err)
		}
		out[gamedb.PropKey(k)] = val
	}
	return out, nil
}
