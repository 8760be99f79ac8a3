package server

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crystal-mush/graphworld/pkg/boltstore"
	"github.com/crystal-mush/graphworld/pkg/content"
	"github.com/crystal-mush/graphworld/pkg/events"
	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/crystal-mush/graphworld/pkg/world"
)

const testPack = `
world:
  name: Test Keep
rooms:
  - key: hall
    desc: hall
    text: A drafty hall.
  - key: yard
    desc: yard
    text: A muddy yard.
paths:
  - {from: hall, to: yard, label: north, back: south}
objects:
  - key: apple
    desc: apple
    classes: [food]
    in: hall
agents:
  - key: guard
    desc: guard
    in: hall
  - key: cook
    desc: cook
    in: hall
`

// newTestGame builds the test pack into a fresh world backed by a
// temporary bolt store.
func newTestGame(t *testing.T, conf *GameConf) (*Game, map[string]string) {
	t.Helper()
	pack, err := content.Load(strings.NewReader(testPack))
	if err != nil {
		t.Fatalf("load pack: %v", err)
	}
	g := gamedb.NewGraph()
	ids, err := content.Build(g, pack)
	if err != nil {
		t.Fatalf("build pack: %v", err)
	}
	w := world.New(g, world.DefaultRegistry(), events.NewBus(), world.Config{})
	store, err := boltstore.Open(filepath.Join(t.TempDir(), "world.bolt"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewGame(w, store, conf), ids
}

// capture is a descriptor output sink.
type capture struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (c *capture) send(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.WriteString(msg)
	c.buf.WriteString("\n")
}

// take returns and clears what was captured.
func (c *capture) take() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.buf.String()
	c.buf.Reset()
	return s
}

func (c *capture) peek() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func newTestDescriptor(game *Game) (*Descriptor, *capture) {
	out := &capture{}
	d := &Descriptor{ID: game.Conns.NextID(), State: ConnLogin, Addr: "test", Retries: 3}
	d.SendFunc = out.send
	game.Conns.Add(d)
	return d, out
}

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"ann", true},
		{"Ann_the-2nd", true},
		{"a", false},
		{"2ann", false},
		{"ann smith", false},
		{"", false},
		{strings.Repeat("x", 25), false},
	}
	for _, tt := range tests {
		if got := ValidName(tt.name); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCreateAccountAndLogin(t *testing.T) {
	game, _ := newTestGame(t, nil)
	acct, err := game.CreateAccount("Ann", "secret")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acct.PlayerID != "ann" {
		t.Errorf("PlayerID = %q, want ann", acct.PlayerID)
	}
	if _, err := game.CreateAccount("Ann", "other"); !errors.Is(err, boltstore.ErrAccountExists) {
		t.Errorf("duplicate account err = %v", err)
	}
	if _, err := game.CreateAccount("no way", "pw"); err == nil {
		t.Error("invalid name accepted")
	}
	if _, err := game.Login("Ann", "secret"); err != nil {
		t.Errorf("Login: %v", err)
	}
	if _, err := game.Login("Ann", "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestNoStore(t *testing.T) {
	game, _ := newTestGame(t, nil)
	game.Store = nil
	if _, err := game.Login("ann", "pw"); !errors.Is(err, ErrNoStore) {
		t.Errorf("Login err = %v", err)
	}
	if err := game.Save(); err != nil {
		t.Errorf("Save without store: %v", err)
	}
}

func TestAttachRunAndReconnect(t *testing.T) {
	game, _ := newTestGame(t, nil)
	acct, err := game.CreateAccount("ann", "pw")
	if err != nil {
		t.Fatal(err)
	}

	d, out := newTestDescriptor(game)
	game.Attach(d, acct)
	if d.State != ConnConnected || d.PlayerID != "ann" {
		t.Fatalf("descriptor state %v player %q", d.State, d.PlayerID)
	}
	body := d.Agent()
	if body == "" {
		t.Fatal("no body after Attach")
	}
	if got := out.take(); !strings.Contains(got, "You are") || !strings.Contains(got, "A drafty hall.") {
		t.Errorf("intro = %q", got)
	}

	game.Run(d, "look")
	if got := out.take(); !strings.Contains(got, "A drafty hall.") {
		t.Errorf("look = %q", got)
	}
	if n := game.World.Router().Buffered(body); n != 0 {
		t.Errorf("%d messages left buffered after delivery", n)
	}

	game.Run(d, "north")
	if got := out.take(); !strings.Contains(got, "A muddy yard.") {
		t.Errorf("north = %q", got)
	}

	game.Detach(d)
	if game.Conns.IsConnected("ann") {
		t.Error("still connected after Detach")
	}
	if agent, ok := game.World.PlayerAgent("ann"); !ok || agent != body {
		t.Fatalf("body after Detach = %q, %v", agent, ok)
	}

	d2, out2 := newTestDescriptor(game)
	game.Attach(d2, acct)
	if d2.Agent() != body {
		t.Errorf("reconnected to %q, want %q", d2.Agent(), body)
	}
	if got := out2.take(); !strings.Contains(got, "You are back.") || !strings.Contains(got, "A muddy yard.") {
		t.Errorf("reconnect = %q", got)
	}
}

func TestAttachWithoutFreeBody(t *testing.T) {
	game, _ := newTestGame(t, nil)
	var descs []*Descriptor
	for _, name := range []string{"ann", "bob", "cat"} {
		acct, err := game.CreateAccount(name, "pw")
		if err != nil {
			t.Fatal(err)
		}
		d, out := newTestDescriptor(game)
		game.Attach(d, acct)
		descs = append(descs, d)
		if name == "cat" {
			if got := out.take(); !strings.Contains(got, "No body is free") {
				t.Errorf("third player told %q", got)
			}
		}
	}
	if descs[0].Agent() == descs[1].Agent() {
		t.Errorf("two players share body %q", descs[0].Agent())
	}
	if descs[2].Agent() != "" {
		t.Errorf("third player got body %q", descs[2].Agent())
	}
	if _, ok := game.World.PlayerAgent("cat"); ok {
		t.Error("player without body is mapped")
	}
}

func TestWho(t *testing.T) {
	game, _ := newTestGame(t, nil)
	for _, name := range []string{"bob", "ann"} {
		acct, err := game.CreateAccount(name, "pw")
		if err != nil {
			t.Fatal(err)
		}
		d, _ := newTestDescriptor(game)
		game.Attach(d, acct)
	}
	newTestDescriptor(game) // still at the login screen

	entries := game.Who()
	if len(entries) != 2 {
		t.Fatalf("Who = %+v", entries)
	}
	if entries[0].Name != "ann" || entries[1].Name != "bob" {
		t.Errorf("Who order = %s, %s", entries[0].Name, entries[1].Name)
	}
	stats := game.ConnectionStats()
	if stats.Total != 3 || stats.Connected != 2 || stats.LoginScreen != 1 {
		t.Errorf("ConnectionStats = %+v", stats)
	}
}

func TestSaveWritesSnapshot(t *testing.T) {
	game, _ := newTestGame(t, nil)
	if game.Store.HasData() {
		t.Fatal("fresh store has data")
	}
	if err := game.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !game.Store.HasData() {
		t.Error("no data after Save")
	}
	snap, err := game.Store.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(snap.Entries) == 0 {
		t.Error("empty snapshot")
	}
}

func TestArchive(t *testing.T) {
	conf := DefaultGameConf()
	conf.ArchiveDir = t.TempDir()
	conf.ArchiveRetain = 1
	game, _ := newTestGame(t, conf)
	first, err := game.Archive()
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if first == "" {
		t.Fatal("no archive path")
	}
	matches, _ := filepath.Glob(filepath.Join(conf.ArchiveDir, "*"))
	if len(matches) != 1 {
		t.Errorf("archives on disk = %v", matches)
	}
}

func TestRequestSaveNeverBlocks(t *testing.T) {
	game, _ := newTestGame(t, nil)
	for i := 0; i < 5; i++ {
		game.RequestSave()
	}
	if len(game.saveReq) != 1 {
		t.Errorf("pending save requests = %d", len(game.saveReq))
	}
}

func TestFormatIdleTime(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{5, "5s"},
		{125, "2m"},
		{7300, "2h"},
		{3 * 86400, "3d"},
	}
	for _, tt := range tests {
		if got := FormatIdleTime(time.Duration(tt.secs) * time.Second); got != tt.want {
			t.Errorf("FormatIdleTime(%ds) = %q, want %q", tt.secs, got, tt.want)
		}
	}
	if got := FormatConnTime(3*time.Hour + 5*time.Minute); got != "03:05" {
		t.Errorf("FormatConnTime = %q", got)
	}
}
