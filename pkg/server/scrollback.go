package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/crystal-mush/graphworld/pkg/events"
)

// ScrollbackWriter is a global event bus subscriber that persists room
// conversation turns to SQLite. Receive runs under the world lock, so turns
// are queued and written by Run.
type ScrollbackWriter struct {
	sqldb *SQLStore
	queue chan RoomTurn

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewScrollbackWriter creates a writer and registers it on the bus.
func NewScrollbackWriter(sqldb *SQLStore, bus *events.Bus) *ScrollbackWriter {
	sw := &ScrollbackWriter{
		sqldb: sqldb,
		queue: make(chan RoomTurn, 1024),
	}
	bus.SubscribeGlobal(sw)
	log.Printf("scrollback: writer registered on event bus")
	return sw
}

// Receive implements events.Subscriber. Only room log events are stored.
func (sw *ScrollbackWriter) Receive(ev events.Event) {
	if ev.Type != events.EvRoomLog || ev.Room == "" {
		return
	}
	caller, _ := ev.Data["caller"].(string)
	turn := RoomTurn{ID: ev.ID, Room: ev.Room, Actor: ev.Source, Caller: caller, Text: ev.Text, At: time.Now()}
	select {
	case sw.queue <- turn:
	default:
		sw.mu.Lock()
		sw.dropped++
		sw.mu.Unlock()
	}
}

// Closed implements events.Subscriber.
func (sw *ScrollbackWriter) Closed() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.closed
}

// Close marks the writer as closed so the bus stops delivering events.
func (sw *ScrollbackWriter) Close() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.closed = true
}

// Run writes queued turns until ctx ends, then flushes what is left.
func (sw *ScrollbackWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			sw.Close()
			for {
				select {
				case t := <-sw.queue:
					sw.write(t)
				default:
					return nil
				}
			}
		case t := <-sw.queue:
			sw.write(t)
		}
	}
}

func (sw *ScrollbackWriter) write(t RoomTurn) {
	if err := sw.sqldb.InsertTurn(t); err != nil {
		log.Printf("scrollback: insert error: %v", err)
	}
	sw.mu.Lock()
	n := sw.dropped
	sw.dropped = 0
	sw.mu.Unlock()
	if n > 0 {
		log.Printf("WARNING: scrollback: dropped %d turns, queue full", n)
	}
}

// RunRetention purges history older than retention every interval until
// ctx ends.
func RunRetention(ctx context.Context, sqldb *SQLStore, retention, interval time.Duration) error {
	if retention <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			purged, err := sqldb.PurgeOlderThan(time.Now().Add(-retention))
			if err != nil {
				log.Printf("scrollback cleanup error: %v", err)
				continue
			}
			if purged > 0 {
				log.Printf("scrollback: purged %d old room turns", purged)
			}
			if err := sqldb.Checkpoint(); err != nil {
				log.Printf("scrollback: checkpoint: %v", err)
			}
		}
	}
}
