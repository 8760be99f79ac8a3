// Command worldtool inspects and converts worlds offline: it checks content
// packs and NPC scripts, builds a pack into a bolt database, and moves
// snapshots between bolt databases and archives.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/crystal-mush/graphworld/pkg/archive"
	"github.com/crystal-mush/graphworld/pkg/boltstore"
	"github.com/crystal-mush/graphworld/pkg/content"
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/npc"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("worldtool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	packPath := fs.String("pack", "", "Path to a YAML content pack")
	scriptDir := fs.String("scripts", "", "NPC script directory (default: scripts next to the pack)")
	boltPath := fs.String("bolt", "", "Path to a bbolt world database")
	archivePath := fs.String("archive", "", "Snapshot archive to read")
	outDir := fs.String("out", "backups", "Directory for exported archives")
	worldName := fs.String("world", "graphworld", "World name recorded in exported archives")
	check := fs.Bool("check", false, "Validate the pack and compile every NPC script")
	build := fs.Bool("build", false, "Build the pack into -bolt, replacing any saved world")
	export := fs.Bool("export", false, "Write the world in -bolt to an archive under -out")
	imp := fs.Bool("import", false, "Load -archive into -bolt")
	list := fs.Bool("list", false, "List archives under -out")
	rooms := fs.Bool("rooms", false, "List rooms and their exits")
	entity := fs.String("entity", "", "Show details for one entity id")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *list {
		return listArchives(stdout, stderr, *outDir)
	}

	if *check {
		if *packPath == "" {
			fmt.Fprintln(stderr, "Usage: worldtool -check -pack <pack.yaml> [-scripts <dir>]")
			return 2
		}
		dir := *scriptDir
		if dir == "" {
			dir = filepath.Join(filepath.Dir(*packPath), "..", "scripts")
		}
		if n := checkPack(stdout, *packPath, dir); n > 0 {
			fmt.Fprintf(stdout, "\n%d problem(s) found\n", n)
			return 1
		}
		fmt.Fprintln(stdout, "OK")
		return 0
	}

	g, err := loadGraph(stdout, *packPath, *boltPath, *archivePath, *build || *imp)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	if g == nil {
		usage(stderr)
		return 2
	}

	printSummary(stdout, g)
	if *rooms {
		fmt.Fprintln(stdout)
		printRooms(stdout, g)
	}
	if *entity != "" {
		fmt.Fprintln(stdout)
		if !printEntity(stdout, g, *entity) {
			fmt.Fprintf(stderr, "ERROR: no entity %q\n", *entity)
			return 1
		}
	}

	snap, err := g.Snapshot()
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	if *build || *imp {
		if *boltPath == "" {
			fmt.Fprintln(stderr, "ERROR: -build and -import need -bolt")
			return 2
		}
		if err := saveBolt(*boltPath, snap); err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "\nSaved %d entities to %s\n", g.Len(), *boltPath)
	}
	if *export {
		path, err := archive.CreateArchive(archive.ArchiveParams{Dir: *outDir, World: *worldName, Snapshot: snap})
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "\nWrote %s\n", path)
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: worldtool [source] [actions]")
	fmt.Fprintln(w, "Sources:")
	fmt.Fprintln(w, "  -pack <yaml>     Build a world from a content pack")
	fmt.Fprintln(w, "  -bolt <db>       Load the world saved in a bolt database")
	fmt.Fprintln(w, "  -archive <file>  Load a snapshot archive")
	fmt.Fprintln(w, "Actions:")
	fmt.Fprintln(w, "  -check           Validate a pack and its scripts")
	fmt.Fprintln(w, "  -build           Pack to bolt database")
	fmt.Fprintln(w, "  -import          Archive to bolt database")
	fmt.Fprintln(w, "  -export          Bolt database (or pack) to archive")
	fmt.Fprintln(w, "  -list            List archives under -out")
	fmt.Fprintln(w, "  -rooms           List rooms")
	fmt.Fprintln(w, "  -entity <id>     Show one entity")
}

// loadGraph picks the world source. For -build and -import the bolt path is
// an output, so it is only read when nothing else was given.
func loadGraph(out io.Writer, packPath, boltPath, archivePath string, boltIsOutput bool) (*gamedb.Graph, error) {
	start := time.Now()
	var g *gamedb.Graph
	switch {
	case archivePath != "":
		snap, m, err := archive.ReadArchive(archivePath)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Archive %s: world %q, %d entities, saved %s\n", archivePath, m.World, m.Entities, m.Timestamp)
		if g, err = gamedb.Restore(snap); err != nil {
			return nil, err
		}
	case packPath != "":
		pack, err := content.LoadFile(packPath)
		if err != nil {
			return nil, err
		}
		g = gamedb.NewGraph()
		if _, err := content.Build(g, pack); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Pack %s: %q\n", packPath, pack.World.Name)
	case boltPath != "" && !boltIsOutput:
		store, err := boltstore.Open(boltPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if !store.HasData() {
			return nil, fmt.Errorf("%s holds no saved world", boltPath)
		}
		snap, err := store.LoadSnapshot()
		if err != nil {
			return nil, err
		}
		at, saves := store.SavedAt()
		fmt.Fprintf(out, "Bolt %s: save #%d at %s\n", boltPath, saves, at.Format(time.RFC3339))
		if g, err = gamedb.Restore(snap); err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}
	fmt.Fprintf(out, "Loaded in %v\n\n", time.Since(start).Round(time.Millisecond))
	return g, nil
}

func saveBolt(path string, snap *gamedb.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	store, err := boltstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveSnapshot(snap)
}

// checkPack reports problems to out and returns how many it found.
func checkPack(out io.Writer, packPath, scriptDir string) int {
	problems := 0
	pack, err := content.LoadFile(packPath)
	if err != nil {
		fmt.Fprintf(out, "pack: %v\n", err)
		return 1
	}
	g := gamedb.NewGraph()
	if _, err := content.Build(g, pack); err != nil {
		fmt.Fprintf(out, "pack: %v\n", err)
		problems++
	}
	fmt.Fprintf(out, "Pack %q: %d rooms, %d paths, %d objects, %d agents, %d templates\n",
		pack.World.Name, len(pack.Rooms), len(pack.Paths), len(pack.Objects), len(pack.Agents), len(pack.Templates))

	refs := map[string][]string{}
	for _, a := range pack.Agents {
		if a.Script != "" {
			refs[a.Script] = append(refs[a.Script], a.Key)
		}
	}
	for _, t := range pack.Templates {
		if t.Script != "" {
			refs[t.Script] = append(refs[t.Script], "template "+t.Desc)
		}
	}
	files, _ := filepath.Glob(filepath.Join(scriptDir, "*"+npc.ScriptExt))
	for _, f := range files {
		if _, ok := refs[filepath.Base(f)]; !ok {
			refs[filepath.Base(f)] = nil
		}
	}

	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		users := refs[name]
		src := name
		if strings.HasSuffix(name, npc.ScriptExt) {
			data, err := os.ReadFile(filepath.Join(scriptDir, name))
			if err != nil {
				fmt.Fprintf(out, "script %s (used by %s): %v\n", name, strings.Join(users, ", "), err)
				problems++
				continue
			}
			src = string(data)
		}
		if err := npc.Compile(src); err != nil {
			fmt.Fprintf(out, "script %s: %v\n", name, err)
			problems++
			continue
		}
		if len(users) == 0 {
			fmt.Fprintf(out, "script %s compiles (unused)\n", name)
		} else {
			fmt.Fprintf(out, "script %s compiles, used by %s\n", name, strings.Join(users, ", "))
		}
	}
	return problems
}

func listArchives(stdout, stderr io.Writer, dir string) int {
	infos, err := archive.ListArchives(dir)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	if len(infos) == 0 {
		fmt.Fprintf(stdout, "No archives in %s\n", dir)
		return 0
	}
	for _, a := range infos {
		fmt.Fprintf(stdout, "%-40s %-25s %-16s %6d entities %8d bytes\n", a.Filename, a.Timestamp, a.World, a.Entities, a.Size)
	}
	return 0
}

func printSummary(w io.Writer, g *gamedb.Graph) {
	fmt.Fprintln(w, "=== WORLD SUMMARY ===")
	fmt.Fprintf(w, "Entities: %d\n", g.Len())
	classes := []gamedb.Class{
		gamedb.ClassRoom, gamedb.ClassAgent, gamedb.ClassObject, gamedb.ClassContainer,
		gamedb.ClassWearable, gamedb.ClassWieldable, gamedb.ClassFood, gamedb.ClassDrink,
	}
	fmt.Fprintln(w, "\n--- Entities by Class ---")
	for _, c := range classes {
		if n := len(g.WithClass(c)); n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", c, n)
		}
	}
	dead := 0
	for _, a := range g.WithClass(gamedb.ClassAgent) {
		if g.BoolProp(a, gamedb.PropDead) {
			dead++
		}
	}
	fmt.Fprintf(w, "  %-10s %d\n", "dead", dead)
}

func printRooms(w io.Writer, g *gamedb.Graph) {
	fmt.Fprintln(w, "=== ROOMS ===")
	for _, room := range g.Rooms() {
		var exits []string
		for _, to := range g.Neighbors(room) {
			label := g.PathLabel(room, to)
			if g.IsLocked(room, to) {
				label += " (locked)"
			}
			exits = append(exits, fmt.Sprintf("%s->%s", label, to))
		}
		fmt.Fprintf(w, "  %-24s %-20s %d inside  %s\n", room, g.Desc(room), len(g.Contains(room)), strings.Join(exits, ", "))
	}
}

func printEntity(w io.Writer, g *gamedb.Graph, id string) bool {
	e, ok := g.Entity(id)
	if !ok {
		return false
	}
	fmt.Fprintf(w, "=== %s ===\n", id)
	fmt.Fprintf(w, "Desc:     %s\n", g.Desc(id))
	if names := g.Names(id); len(names) > 0 {
		fmt.Fprintf(w, "Names:    %s\n", strings.Join(names, ", "))
	}
	var classes []string
	for _, c := range []gamedb.Class{
		gamedb.ClassRoom, gamedb.ClassAgent, gamedb.ClassObject, gamedb.ClassContainer,
		gamedb.ClassWearable, gamedb.ClassWieldable, gamedb.ClassFood, gamedb.ClassDrink,
	} {
		if g.HasClass(id, c) {
			classes = append(classes, string(c))
		}
	}
	fmt.Fprintf(w, "Classes:  %s\n", strings.Join(classes, ", "))
	if loc, ok := g.Location(id); ok {
		fmt.Fprintf(w, "In:       %s\n", loc)
	}
	keys := make([]string, 0, len(e.Props))
	for k := range e.Props {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-14s %s\n", k, e.Props[gamedb.PropKey(k)].AsString())
	}
	if inside := g.Contains(id); len(inside) > 0 {
		fmt.Fprintf(w, "Contains: %s\n", strings.Join(inside, ", "))
	}
	return true
}
