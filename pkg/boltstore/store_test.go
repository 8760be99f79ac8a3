package boltstore

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "world.bolt"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot(t *testing.T) *gamedb.Snapshot {
	t.Helper()
	g := gamedb.NewGraph()
	room, _ := g.Create("hall", nil, gamedb.ClassRoom)
	lamp, _ := g.Create("lamp", nil, gamedb.ClassObject)
	g.Move(lamp, room)
	snap, err := g.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTemp(t)
	if s.HasData() {
		t.Fatal("fresh store reports data")
	}
	if _, err := s.LoadSnapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("empty load: %v", err)
	}

	snap := sampleSnapshot(t)
	if err := s.SaveSnapshot(snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Version != snap.Version || !reflect.DeepEqual(got.Entries, snap.Entries) {
		t.Errorf("loaded snapshot differs")
	}
	if _, err := gamedb.Restore(got); err != nil {
		t.Errorf("restore loaded snapshot: %v", err)
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	s := openTemp(t)
	first := &gamedb.Snapshot{Version: 1, Entries: map[string]string{"stale": "1", "keep": "a"}}
	second := &gamedb.Snapshot{Version: 1, Entries: map[string]string{"keep": "b"}}
	s.SaveSnapshot(first)
	s.SaveSnapshot(second)
	got, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Entries, second.Entries) {
		t.Errorf("entries = %v", got.Entries)
	}
	if _, saves := s.SavedAt(); saves != 2 {
		t.Errorf("saves = %d", saves)
	}
}

func TestBackup(t *testing.T) {
	s := openTemp(t)
	s.SaveSnapshot(sampleSnapshot(t))
	path := filepath.Join(t.TempDir(), "backup.bolt")
	if err := s.Backup(path); err != nil {
		t.Fatalf("backup: %v", err)
	}
	b, err := Open(path)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer b.Close()
	if !b.HasData() {
		t.Error("backup has no snapshot")
	}
}

func TestAccounts(t *testing.T) {
	s := openTemp(t)
	a, err := s.CreateAccount("Alice", "hunter2", "p-alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if string(a.Hash) == "hunter2" {
		t.Fatal("password stored in clear")
	}
	if _, err := s.CreateAccount("alice", "other", "p2"); !errors.Is(err, ErrAccountExists) {
		t.Errorf("duplicate create: %v", err)
	}

	got, err := s.Authenticate("ALICE", "hunter2")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.PlayerID != "p-alice" || got.LastSeen.IsZero() {
		t.Errorf("account = %+v", got)
	}
	if _, err := s.Authenticate("alice", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := s.Authenticate("bob", "x"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("unknown user: %v", err)
	}

	got.Wizard = true
	if err := s.PutAccount(got); err != nil {
		t.Fatalf("put: %v", err)
	}
	if again, _ := s.GetAccount("alice"); !again.Wizard {
		t.Error("wizard flag not saved")
	}
	if names, _ := s.Accounts(); len(names) != 1 || names[0] != "Alice" {
		t.Errorf("accounts = %v", names)
	}
}
