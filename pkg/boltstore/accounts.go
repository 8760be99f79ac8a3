package boltstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrAccountExists is returned when creating a taken name.
	ErrAccountExists = errors.New("boltstore: account exists")
	// ErrBadCredentials covers both unknown names and wrong passwords.
	ErrBadCredentials = errors.New("boltstore: bad credentials")
)

// Account is a login. PlayerID is the stable identity the world maps to
// whichever body the player currently controls.
type Account struct {
	Name     string
	Hash     []byte
	PlayerID string
	Wizard   bool
	Created  time.Time
	LastSeen time.Time
}

func accountKey(name string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(name)))
}

// CreateAccount stores a new account with a bcrypt password hash.
func (s *Store) CreateAccount(name, password, playerID string) (*Account, error) {
	if strings.TrimSpace(name) == "" || password == "" {
		return nil, fmt.Errorf("boltstore: create account: empty name or password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("boltstore: hash password: %w", err)
	}
	a := &Account{Name: strings.TrimSpace(name), Hash: hash, PlayerID: playerID, Created: time.Now()}
	err = s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		if b.Get(accountKey(name)) != nil {
			return ErrAccountExists
		}
		data, err := encodeAccount(a)
		if err != nil {
			return err
		}
		return b.Put(accountKey(name), data)
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: create account %q: %w", name, err)
	}
	return a, nil
}

// GetAccount loads an account by name, case-insensitively.
func (s *Store) GetAccount(name string) (*Account, error) {
	var a *Account
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get(accountKey(name))
		if data == nil {
			return ErrBadCredentials
		}
		var err error
		a, err = decodeAccount(data)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: get account %q: %w", name, err)
	}
	return a, nil
}

// PutAccount overwrites an account record.
func (s *Store) PutAccount(a *Account) error {
	data, err := encodeAccount(a)
	if err != nil {
		return fmt.Errorf("boltstore: encode account %q: %w", a.Name, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).Put(accountKey(a.Name), data)
	})
}

// Authenticate checks a password and stamps LastSeen.
func (s *Store) Authenticate(name, password string) (*Account, error) {
	a, err := s.GetAccount(name)
	if err != nil {
		return nil, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword(a.Hash, []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	a.LastSeen = time.Now()
	if err := s.PutAccount(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Accounts lists account names, sorted.
func (s *Store) Accounts() ([]string, error) {
	var names []string
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			a, err := decodeAccount(v)
			if err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			names = append(names, a.Name)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list accounts: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
