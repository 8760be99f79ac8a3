package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crystal-mush/graphworld/pkg/archive"
	"github.com/crystal-mush/graphworld/pkg/boltstore"
	"github.com/crystal-mush/graphworld/pkg/content"
	"github.com/crystal-mush/graphworld/pkg/events"
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/npc"
	"github.com/crystal-mush/graphworld/pkg/server"
	"github.com/crystal-mush/graphworld/pkg/world"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("WORLD_CONF", ""), "Path to game config file (env: WORLD_CONF)")
	port := flag.Int("port", 0, "Telnet port, overrides config (env: WORLD_PORT)")
	contentPath := flag.String("content", "", "Content pack for a fresh world, overrides config (env: WORLD_CONTENT)")
	boltPath := flag.String("bolt", "", "Path to bbolt database, overrides config (env: WORLD_BOLT)")
	fresh := flag.Bool("fresh", os.Getenv("WORLD_FRESH") == "true", "Ignore the saved world and build from the content pack (env: WORLD_FRESH)")
	restorePath := flag.String("restore", envDefault("WORLD_RESTORE", ""), "Boot from a snapshot archive (env: WORLD_RESTORE)")
	debug := flag.Bool("debug", os.Getenv("WORLD_DEBUG") == "true", "Log every command (env: WORLD_DEBUG)")
	flag.Parse()

	log.Printf("Welcome to %s", server.VersionString())
	server.SetDebug(*debug)

	gc := server.DefaultGameConf()
	if *confFile != "" {
		var err error
		gc, err = server.LoadGameConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading game config: %v", err)
		}
		log.Printf("Loaded game config from %s", *confFile)
	}
	gc.ApplyEnv(os.LookupEnv)

	// Command-line flags override config file values
	if *port != 0 {
		gc.Port = *port
	}
	if *contentPath != "" {
		gc.ContentPath = *contentPath
	}
	if *boltPath != "" {
		gc.BoltPath = *boltPath
	}
	if err := gc.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(gc.BoltPath), 0o755); err != nil {
		log.Fatalf("Error creating data directory: %v", err)
	}
	store, err := boltstore.Open(gc.BoltPath)
	if err != nil {
		log.Fatalf("Error opening bolt database: %v", err)
	}
	defer store.Close()

	pack, err := content.LoadFile(gc.ContentPath)
	if err != nil {
		log.Printf("WARNING: content pack %s: %v", gc.ContentPath, err)
		pack = nil
	}

	w := world.New(gamedb.NewGraph(), world.DefaultRegistry(), events.NewBus(), world.Config{
		InitialNPCs:  gc.InitialNPCs,
		DecayTicks:   gc.DecayTicks,
		RoomLogSize:  gc.RoomLogSize,
		SuggestVerbs: gc.SuggestVerbs,
	})
	if err := loadWorld(w, store, pack, *restorePath, *fresh); err != nil {
		log.Fatalf("Error loading world: %v", err)
	}

	w.SetDefaultPolicy(npc.NewScripted(gc.ScriptDir, npc.NewRandom(gc.NPCActProb, nil)))
	populator := content.NewPopulator(&content.Pack{}, nil)
	if pack != nil {
		populator.SetTemplates(pack.Templates)
	}
	w.SetPopulator(populator)

	game := server.NewGame(w, store, gc)
	game.InstallBuilder()
	server.NewMetrics(game, time.Now())

	var scrollback *server.ScrollbackWriter
	if gc.SQLDatabase != "" {
		sqldb, err := server.OpenSQLStore(gc.SQLDatabase, gc.SQLTimeout)
		if err != nil {
			log.Printf("WARNING: scrollback disabled, %s: %v", gc.SQLDatabase, err)
		} else {
			defer sqldb.Close()
			game.SQLDB = sqldb
			scrollback = server.NewScrollbackWriter(sqldb, game.Bus)
			log.Printf("Scrollback enabled, database: %s", gc.SQLDatabase)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	eg, ctx := errgroup.WithContext(ctx)

	telnet := server.NewServer(game, server.ConfigFrom(gc))
	eg.Go(func() error { return telnet.Serve(ctx) })

	if gc.WebEnabled {
		web := server.NewWebServer(game, server.WebConfigFrom(gc))
		eg.Go(func() error { return web.Serve(ctx) })
	}

	eg.Go(func() error {
		if err := w.Run(ctx, gc.Tick()); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		return game.RunAutoSave(ctx, time.Duration(gc.AutosaveInterval)*time.Second)
	})

	if scrollback != nil {
		eg.Go(func() error { return scrollback.Run(ctx) })
		eg.Go(func() error {
			return server.RunRetention(ctx, game.SQLDB, time.Duration(gc.ScrollbackRetention)*time.Second, 10*time.Minute)
		})
	}

	if gc.WatchContent {
		cw := &server.ContentWatcher{
			Game:      game,
			PackPath:  gc.ContentPath,
			ScriptDir: gc.ScriptDir,
			OnPack:    func(p *content.Pack) { populator.SetTemplates(p.Templates) },
		}
		eg.Go(func() error { return cw.Run(ctx) })
	}

	log.Printf("Starting %s on port %d (tick %v)...", gc.WorldName, gc.Port, gc.Tick())
	if err := eg.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Shutdown complete.")
}

// loadWorld fills w from, in order of preference: an archive given on the
// command line, the saved snapshot, or the content pack.
func loadWorld(w *world.World, store *boltstore.Store, pack *content.Pack, restorePath string, fresh bool) error {
	if restorePath != "" {
		snap, m, err := archive.ReadArchive(restorePath)
		if err != nil {
			return err
		}
		log.Printf("Restoring %s: %d entities saved %s", restorePath, m.Entities, m.Timestamp)
		return w.Restore(snap)
	}
	if !fresh && store.HasData() {
		snap, err := store.LoadSnapshot()
		if err != nil {
			return err
		}
		at, saves := store.SavedAt()
		log.Printf("Loaded saved world from %s (save #%d at %s)", store.Path(), saves, at.Format(time.RFC3339))
		return w.Restore(snap)
	}
	if pack == nil {
		return fmt.Errorf("no saved world and no usable content pack")
	}
	var buildErr error
	w.Locked(func(w *world.World) {
		_, buildErr = content.Build(w.Graph(), pack)
	})
	return buildErr
}
