package server

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLStore keeps room conversation history in SQLite.
type SQLStore struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	timeout time.Duration
}

// RoomTurn is one persisted line of a room's conversation.
type RoomTurn struct {
	ID     string    `json:"id"`
	Room   string    `json:"room"`
	Actor  string    `json:"actor"`
	Caller string    `json:"caller"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// OpenSQLStore opens a SQLite3 database, sets WAL mode and busy timeout,
// and creates the history table.
func OpenSQLStore(path string, timeoutSec int) (*SQLStore, error) {
	if timeoutSec <= 0 {
		timeoutSec = 5
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqldb: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000),
		`CREATE TABLE IF NOT EXISTS room_log (
			id      TEXT PRIMARY KEY,
			room    TEXT NOT NULL,
			actor   TEXT NOT NULL,
			caller  TEXT NOT NULL,
			text    TEXT NOT NULL,
			at_unix INTEGER NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS room_log_room_at ON room_log(room, at_unix)",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqldb: %s: %w", path, err)
		}
	}
	return &SQLStore{
		db:      db,
		path:    path,
		timeout: time.Duration(timeoutSec) * time.Second,
	}, nil
}

// Close closes the SQLite3 database connection.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the filesystem path of the SQLite database.
func (s *SQLStore) Path() string { return s.path }

func (s *SQLStore) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, fmt.Errorf("sqldb: closed")
	}
	return s.db, nil
}

// Checkpoint forces a WAL checkpoint to flush all writes to the main database file.
func (s *SQLStore) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// InsertTurn stores one conversation turn. A repeated id is ignored.
func (s *SQLStore) InsertTurn(t RoomTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO room_log (id, room, actor, caller, text, at_unix) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Room, t.Actor, t.Caller, t.Text, t.At.UnixNano())
	if err != nil {
		return fmt.Errorf("sqldb: insert turn: %w", err)
	}
	return nil
}

// RoomHistory returns up to limit of a room's most recent turns, oldest
// first.
func (s *SQLStore) RoomHistory(room string, limit int) ([]RoomTurn, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	rows, err := db.QueryContext(ctx,
		`SELECT id, room, actor, caller, text, at_unix FROM room_log
		 WHERE room = ? ORDER BY at_unix DESC, id DESC LIMIT ?`, room, limit)
	if err != nil {
		return nil, fmt.Errorf("sqldb: room history: %w", err)
	}
	defer rows.Close()

	var out []RoomTurn
	for rows.Next() {
		var t RoomTurn
		var at int64
		if err := rows.Scan(&t.ID, &t.Room, &t.Actor, &t.Caller, &t.Text, &at); err != nil {
			return nil, fmt.Errorf("sqldb: room history: %w", err)
		}
		t.At = time.Unix(0, at)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: room history: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PurgeOlderThan deletes turns older than cutoff and returns how many went.
func (s *SQLStore) PurgeOlderThan(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	res, err := db.ExecContext(ctx, `DELETE FROM room_log WHERE at_unix < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqldb: purge: %w", err)
	}
	return res.RowsAffected()
}
