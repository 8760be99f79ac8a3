package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/crystal-mush/graphworld/pkg/content"
	"github.com/crystal-mush/graphworld/pkg/npc"
	"github.com/fsnotify/fsnotify"
)

// ContentWatcher reports edits to the content pack and NPC scripts. A
// pack that still validates is handed to OnPack, so new NPC templates take
// effect at the next respawn; a broken one or a script that no longer
// compiles is reported to wizards and otherwise ignored.
type ContentWatcher struct {
	Game      *Game
	PackPath  string
	ScriptDir string
	OnPack    func(*content.Pack)
}

// Run watches until ctx ends.
func (cw *ContentWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WARNING: Could not start content watcher: %v", err)
		return nil
	}
	defer watcher.Close()

	var dirs []string
	if cw.PackPath != "" {
		dirs = append(dirs, filepath.Dir(cw.PackPath))
	}
	if cw.ScriptDir != "" {
		dirs = append(dirs, cw.ScriptDir)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			log.Printf("WARNING: Could not watch %s: %v", dir, err)
			continue
		}
		log.Printf("Watching %s for content changes", dir)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if msg := cw.check(event.Name); msg != "" {
				log.Print(msg)
				cw.Game.NotifyWizards("GAME: " + msg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Content watcher error: %v", err)
		}
	}
}

// check validates a changed file and returns a notice, or "" when the
// file is not one we track.
func (cw *ContentWatcher) check(name string) string {
	switch {
	case cw.PackPath != "" && filepath.Clean(name) == filepath.Clean(cw.PackPath):
		pack, err := content.LoadFile(name)
		if err != nil {
			return fmt.Sprintf("Content pack %s changed but is invalid: %v", filepath.Base(name), err)
		}
		if cw.OnPack != nil {
			cw.OnPack(pack)
		}
		return fmt.Sprintf("Content pack %s reloaded: %d NPC templates. Rooms take effect on a fresh world.",
			filepath.Base(name), len(pack.Templates))
	case cw.ScriptDir != "" && filepath.Dir(name) == filepath.Clean(cw.ScriptDir) && strings.HasSuffix(name, npc.ScriptExt):
		src, err := os.ReadFile(name)
		if err != nil {
			return ""
		}
		if err := npc.Compile(string(src)); err != nil {
			return fmt.Sprintf("NPC script %s does not compile: %v", filepath.Base(name), err)
		}
		return fmt.Sprintf("NPC script %s updated.", filepath.Base(name))
	}
	return ""
}
