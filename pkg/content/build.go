package content

import (
	"fmt"
	"log"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
)

// Build creates the pack's entities in g and returns pack key -> entity id.
// Objects are placed after everything exists so they may sit inside each
// other or in agents.
func Build(g *gamedb.Graph, p *Pack) (map[string]string, error) {
	ids := make(map[string]string)
	for _, r := range p.Rooms {
		pr, err := props(r.Props)
		if err != nil {
			return nil, fmt.Errorf("content: room %s: %w", r.Key, err)
		}
		if r.Text != "" {
			pr[gamedb.PropDesc] = gamedb.Str(r.Text)
		}
		if r.Extra != "" {
			pr[gamedb.PropExtraDesc] = gamedb.Str(r.Extra)
		}
		id, err := create(g, r.Desc, r.Names, pr, gamedb.ClassRoom)
		if err != nil {
			return nil, fmt.Errorf("content: room %s: %w", r.Key, err)
		}
		ids[r.Key] = id
	}
	for _, o := range p.Objects {
		id, err := createObject(g, o)
		if err != nil {
			return nil, fmt.Errorf("content: object %s: %w", o.Key, err)
		}
		ids[o.Key] = id
	}
	for _, a := range p.Agents {
		id, err := createAgent(g, Template{Desc: a.Desc, Text: a.Text, Names: a.Names, Persona: a.Persona, Script: a.Script, Props: a.Props})
		if err != nil {
			return nil, fmt.Errorf("content: agent %s: %w", a.Key, err)
		}
		ids[a.Key] = id
		if a.In != "" {
			if err := g.Move(id, ids[a.In]); err != nil {
				return nil, fmt.Errorf("content: place agent %s: %w", a.Key, err)
			}
		}
	}
	for _, o := range p.Objects {
		if o.In == "" {
			continue
		}
		if err := g.Move(ids[o.Key], ids[o.In]); err != nil {
			return nil, fmt.Errorf("content: place object %s in %s: %w", o.Key, o.In, err)
		}
	}
	for _, pd := range p.Paths {
		from, to := ids[pd.From], ids[pd.To]
		if err := g.AddPath(from, to, pd.Label, pd.Back, ids[pd.LockedWith]); err != nil {
			return nil, fmt.Errorf("content: path %s->%s: %w", pd.From, pd.To, err)
		}
		if pd.FullLabel {
			for _, edge := range [][2]string{{from, to}, {to, from}} {
				if path, ok := g.PathBetween(edge[0], edge[1]); ok {
					path.FullLabel = true
					g.SetPath(edge[0], edge[1], path)
				}
			}
		}
		if pd.Locked {
			if err := g.Lock(from, to, ids[pd.LockedWith]); err != nil {
				return nil, fmt.Errorf("content: lock %s->%s: %w", pd.From, pd.To, err)
			}
		}
	}
	log.Printf("content: built %q: %d rooms, %d objects, %d agents", p.World.Name, len(p.Rooms), len(p.Objects), len(p.Agents))
	return ids, nil
}

func create(g *gamedb.Graph, desc string, names []string, pr gamedb.Props, classes ...gamedb.Class) (string, error) {
	id, err := g.Create(desc, pr, classes...)
	if err != nil {
		return "", err
	}
	for _, n := range names {
		g.AddName(id, n)
	}
	return id, nil
}

func createObject(g *gamedb.Graph, o Object) (string, error) {
	pr, err := props(o.Props)
	if err != nil {
		return "", err
	}
	if o.Text != "" {
		pr[gamedb.PropDesc] = gamedb.Str(o.Text)
	}
	classes := []gamedb.Class{gamedb.ClassObject}
	for _, c := range o.Classes {
		if gamedb.Class(c) != gamedb.ClassObject {
			classes = append(classes, gamedb.Class(c))
		}
	}
	return create(g, o.Desc, o.Names, pr, classes...)
}

// createAgent builds an agent with carry capacity, speed and health
// defaults, then its carried objects.
func createAgent(g *gamedb.Graph, t Template) (string, error) {
	pr := gamedb.Props{
		gamedb.PropContainSize: gamedb.Int(DefaultCarry),
		gamedb.PropSpeed:       gamedb.Int(DefaultSpeed),
		gamedb.PropHealth:      gamedb.Int(6),
	}
	extra, err := props(t.Props)
	if err != nil {
		return "", err
	}
	for k, v := range extra {
		pr[k] = v
	}
	if t.Text != "" {
		pr[gamedb.PropDesc] = gamedb.Str(t.Text)
	}
	if t.Persona != "" {
		pr[gamedb.PropPersona] = gamedb.Str(t.Persona)
	}
	if t.Script != "" {
		pr[gamedb.PropScript] = gamedb.Str(t.Script)
	}
	id, err := create(g, t.Desc, t.Names, pr, gamedb.ClassAgent)
	if err != nil {
		return "", err
	}
	for _, o := range t.Carries {
		item, err := createObject(g, o)
		if err != nil {
			return "", fmt.Errorf("carried %s: %w", o.Desc, err)
		}
		if err := g.Move(item, id); err != nil {
			return "", fmt.Errorf("carried %s: %w", o.Desc, err)
		}
	}
	return id, nil
}
