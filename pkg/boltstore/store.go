// Package boltstore persists world snapshots and player accounts in bbolt.
package boltstore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
)

// ErrNoSnapshot is returned by LoadSnapshot on an empty database.
var ErrNoSnapshot = errors.New("boltstore: no snapshot saved")

// Store wraps a bbolt database.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	// Ensure all buckets exist.
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketSnapshot, bucketAccounts} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}
	return &Store{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// SaveSnapshot replaces the stored snapshot in a single transaction.
func (s *Store) SaveSnapshot(snap *gamedb.Snapshot) error {
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketSnapshot); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketSnapshot)
		if err != nil {
			return err
		}
		for k, v := range snap.Entries {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return fmt.Errorf("put %s: %w", k, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		saves := 0
		if v := meta.Get(keySaves); v != nil {
			saves = keyToInt(v)
		}
		meta.Put(keyVersion, intToKey(snap.Version))
		meta.Put(keySavedAt, intToKey(int(time.Now().Unix())))
		return meta.Put(keySaves, intToKey(saves+1))
	})
	if err != nil {
		return fmt.Errorf("boltstore: save snapshot: %w", err)
	}
	log.Printf("boltstore: saved %d snapshot entries", len(snap.Entries))
	return nil
}

// LoadSnapshot reads the stored snapshot.
func (s *Store) LoadSnapshot() (*gamedb.Snapshot, error) {
	snap := &gamedb.Snapshot{Entries: make(map[string]string)}
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyVersion)
		if v == nil {
			return ErrNoSnapshot
		}
		snap.Version = keyToInt(v)
		return tx.Bucket(bucketSnapshot).ForEach(func(k, v []byte) error {
			snap.Entries[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil, err
		}
		return nil, fmt.Errorf("boltstore: load snapshot: %w", err)
	}
	log.Printf("boltstore: loaded %d snapshot entries", len(snap.Entries))
	return snap, nil
}

// SavedAt reports when the last snapshot was written and how many saves
// the database has seen.
func (s *Store) SavedAt() (time.Time, int) {
	var at time.Time
	saves := 0
	s.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if v := b.Get(keySavedAt); v != nil {
			at = time.Unix(int64(keyToInt(v)), 0)
		}
		if v := b.Get(keySaves); v != nil {
			saves = keyToInt(v)
		}
		return nil
	})
	return at, saves
}

// HasData returns true if a snapshot has been saved.
func (s *Store) HasData() bool {
	hasData := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		hasData = tx.Bucket(bucketMeta).Get(keyVersion) != nil
		return nil
	})
	return hasData
}

// Backup creates a hot snapshot of the bbolt database using tx.WriteTo().
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		_, err = tx.WriteTo(f)
		if err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}
