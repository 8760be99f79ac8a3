package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/crystal-mush/graphworld/pkg/archive"
	"github.com/crystal-mush/graphworld/pkg/boltstore"
	"github.com/crystal-mush/graphworld/pkg/events"
	"github.com/crystal-mush/graphworld/pkg/world"
	"golang.org/x/text/encoding/charmap"
)

// ErrNoStore is returned by account operations when persistence is off.
var ErrNoStore = errors.New("server: no account store")

// Game ties the world to its sessions, persistence and metrics.
type Game struct {
	World   *world.World
	Bus     *events.Bus
	Store   *boltstore.Store // nil = no persistence
	SQLDB   *SQLStore        // nil = no scrollback
	Conf    *GameConf
	Conns   *ConnManager
	Metrics *Metrics

	charset   *charmap.Charmap
	saveReq   chan struct{}
	startTime time.Time
}

// NewGame binds a world to the server. conf may be nil for defaults.
func NewGame(w *world.World, store *boltstore.Store, conf *GameConf) *Game {
	if conf == nil {
		conf = DefaultGameConf()
	}
	g := &Game{
		World:     w,
		Bus:       w.Router().Bus(),
		Store:     store,
		Conf:      conf,
		Conns:     NewConnManager(),
		saveReq:   make(chan struct{}, 1),
		startTime: time.Now(),
	}
	if cm, err := lookupCharset(conf.Charset); err != nil {
		log.Printf("WARNING: %v, using UTF-8", err)
	} else {
		g.charset = cm
	}
	return g
}

var validNameRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{1,23}$`)

// ValidName reports whether name may be used for a new account.
func ValidName(name string) bool {
	return validNameRE.MatchString(name)
}

// Login checks an account's password.
func (g *Game) Login(name, password string) (*boltstore.Account, error) {
	if g.Store == nil {
		return nil, ErrNoStore
	}
	return g.Store.Authenticate(name, password)
}

// CreateAccount registers a new account. The player id is the lowercased
// account name.
func (g *Game) CreateAccount(name, password string) (*boltstore.Account, error) {
	if g.Store == nil {
		return nil, ErrNoStore
	}
	if !ValidName(name) {
		return nil, fmt.Errorf("server: invalid account name %q", name)
	}
	return g.Store.CreateAccount(name, password, strings.ToLower(name))
}

// IsWizard reports whether an account may use builder commands.
func (g *Game) IsWizard(a *boltstore.Account) bool {
	return a.Wizard || g.Conf.IsWizard(a.Name)
}

// Attach logs a descriptor in as an account and gives the player a body.
// When no body is free the player is still connected and told to retry.
func (g *Game) Attach(d *Descriptor, a *boltstore.Account) {
	d.Account = a.Name
	d.Wizard = g.IsWizard(a)
	if d.Charset == nil {
		d.Charset = g.charset
	}
	d.consume = func(agent string) { g.World.Router().Drain(agent) }
	g.Conns.Login(d, a.PlayerID)
	if g.Metrics != nil {
		g.Metrics.connectionsTotal.WithLabelValues(d.Transport.String()).Inc()
	}

	prev, had := g.World.PlayerAgent(a.PlayerID)
	_, agent, err := g.World.SpawnPlayer(a.PlayerID)
	if errors.Is(err, world.ErrNoBody) {
		d.Send(noBodyText)
		log.Printf("[%d] %s connected without a body", d.ID, a.Name)
		return
	}
	log.Printf("[%d] %s connected as %s from %s", d.ID, a.Name, agent, d.Addr)
	g.resync(d)
	if had && prev == agent {
		// Returning to a body kept from an earlier session.
		g.World.Locked(func(w *world.World) {
			w.Tell(agent, "You are back.\n"+w.RoomText(agent))
		})
	}
}

const noBodyText = "No body is free right now. Type *respawn* to try again."

// resync subscribes d under whatever body its player now controls and
// flushes narration that arrived before the subscription.
func (g *Game) resync(d *Descriptor) {
	var pending string
	g.World.Locked(func(w *world.World) {
		cur, ok := w.BodyOf(d.PlayerID)
		old := d.Agent()
		if !ok || cur == old {
			return
		}
		if old != "" {
			g.Bus.Unsubscribe(old, d)
		}
		g.Bus.Unsubscribe(cur, d)
		g.Bus.Subscribe(cur, d)
		d.setAgent(cur)
		pending = w.Router().Drain(cur)
	})
	if pending != "" {
		d.Send(pending)
	}
}

// Run executes one line of player input.
func (g *Game) Run(d *Descriptor, line string) {
	d.countCommand()
	d.LastCmd = time.Now()
	DebugLog("[%d] CMD player=%s body=%s input=%q", d.ID, d.PlayerID, d.Agent(), line)
	if g.Metrics != nil {
		g.Metrics.bytesRecvTotal.Add(float64(len(line)))
	}
	if !g.World.ExecutePlayer(d.PlayerID, line) {
		if _, has := g.World.PlayerAgent(d.PlayerID); !has {
			d.Send(noBodyText)
		}
	}
	g.resync(d)
}

// Detach ends a session. The player's body stays theirs for when they
// return.
func (g *Game) Detach(d *Descriptor) {
	g.Conns.Remove(d)
	d.Close()
	if agent := d.Agent(); agent != "" {
		g.Bus.Unsubscribe(agent, d)
	}
	g.Bus.Cleanup()
}

// NotifyWizards sends a message to every connected wizard.
func (g *Game) NotifyWizards(msg string) {
	for _, dd := range g.Conns.AllDescriptors() {
		if dd.State == ConnConnected && dd.Wizard {
			dd.Send(msg)
		}
	}
}

// playerIsWizard reports whether any session of a player is a wizard.
func (g *Game) playerIsWizard(playerID string) bool {
	for _, d := range g.Conns.GetByPlayer(playerID) {
		if d.Wizard {
			return true
		}
	}
	return false
}

// WhoEntry is one connected player.
type WhoEntry struct {
	Name  string `json:"name"`
	Body  string `json:"body"`
	OnFor string `json:"on_for"`
	Idle  string `json:"idle"`
}

// Who lists connected players, sorted by name.
func (g *Game) Who() []WhoEntry {
	now := time.Now()
	var entries []WhoEntry
	for _, dd := range g.Conns.AllDescriptors() {
		if dd.State != ConnConnected {
			continue
		}
		entries = append(entries, WhoEntry{
			Name:  dd.Account,
			Body:  dd.Agent(),
			OnFor: FormatConnTime(now.Sub(dd.ConnTime)),
			Idle:  FormatIdleTime(now.Sub(dd.LastCmd)),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// ShowWho prints the connected players to d.
func (g *Game) ShowWho(d *Descriptor) {
	entries := g.Who()
	d.Send(fmt.Sprintf("%-16s%9s %4s  %s", "Player Name", "On For", "Idle", "Body"))
	for _, e := range entries {
		d.Send(fmt.Sprintf("%-16s%9s %4s  %s", e.Name, e.OnFor, e.Idle, e.Body))
	}
	d.Send(fmt.Sprintf("%d player(s) logged in.", len(entries)))
}

// Save writes the world snapshot to the bolt store.
func (g *Game) Save() error {
	if g.Store == nil {
		return nil
	}
	snap, err := g.World.Snapshot()
	if err != nil {
		return err
	}
	if err := g.Store.SaveSnapshot(snap); err != nil {
		return err
	}
	log.Printf("Saved world: %d entries", len(snap.Entries))
	return nil
}

// Archive writes a snapshot archive and prunes old ones.
func (g *Game) Archive() (string, error) {
	if g.Conf.ArchiveDir == "" {
		return "", nil
	}
	snap, err := g.World.Snapshot()
	if err != nil {
		return "", err
	}
	path, err := archive.CreateArchive(archive.ArchiveParams{
		Dir:      g.Conf.ArchiveDir,
		World:    g.Conf.WorldName,
		Snapshot: snap,
	})
	if err != nil {
		return "", err
	}
	if n, err := archive.Prune(g.Conf.ArchiveDir, g.Conf.ArchiveRetain); err != nil {
		log.Printf("WARNING: archive prune: %v", err)
	} else if n > 0 {
		log.Printf("Pruned %d old archive(s)", n)
	}
	return path, nil
}

// RequestSave asks the autosave loop to save and archive soon. It never
// blocks, so it is safe from inside a command.
func (g *Game) RequestSave() {
	select {
	case g.saveReq <- struct{}{}:
	default:
	}
}

// RunAutoSave saves every interval and on RequestSave until ctx ends, then
// saves once more.
func (g *Game) RunAutoSave(ctx context.Context, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			if err := g.Save(); err != nil {
				log.Printf("ERROR: final save failed: %v", err)
			}
			return nil
		case <-tick:
			if err := g.Save(); err != nil {
				log.Printf("ERROR: Auto-save failed: %v", err)
			}
		case <-g.saveReq:
			if err := g.Save(); err != nil {
				log.Printf("ERROR: save failed: %v", err)
				g.NotifyWizards("GAME: Save failed, see the server log.")
				continue
			}
			path, err := g.Archive()
			if err != nil {
				log.Printf("ERROR: archive failed: %v", err)
				g.NotifyWizards("GAME: Archive failed, see the server log.")
				continue
			}
			g.NotifyWizards("GAME: Snapshot saved " + path)
		}
	}
}
