package server

import (
	"fmt"
	"log"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/graphworld/pkg/events"
	"github.com/crystal-mush/graphworld/pkg/oob"
	"golang.org/x/text/encoding/charmap"
)

// TransportType identifies the kind of transport a Descriptor uses.
type TransportType int

const (
	TransportTCP       TransportType = iota // Telnet/TCP
	TransportWebSocket                      // WebSocket (JSON events)
)

func (t TransportType) String() string {
	if t == TransportWebSocket {
		return "websocket"
	}
	return "tcp"
}

// outboxSize bounds the events queued for a client that is slow to read.
const outboxSize = 256

// ConnState tracks the state of a connection.
type ConnState int

const (
	ConnLogin     ConnState = iota // Pre-login: awaiting connect/create
	ConnConnected                  // Logged in and attached to the world
)

// Descriptor represents a single client connection.
// It implements events.Subscriber so it can receive events from the bus.
type Descriptor struct {
	ID        int
	Conn      net.Conn
	State     ConnState
	Account   string // Account name as typed at creation
	PlayerID  string // World player id
	Wizard    bool
	Addr      string
	ConnTime  time.Time
	LastCmd   time.Time
	Retries   int
	CmdCount  int           // Total commands entered this session
	BytesSent int           // Total bytes sent to this connection
	BytesRecv int           // Total bytes received from this connection
	Transport TransportType // Transport type (TCP, WebSocket)
	Charset   *charmap.Charmap
	OOB       *oob.Capabilities // Telnet GMCP negotiation, nil for WebSocket

	// SendFunc overrides the default Send behavior (used by WebSocket transport).
	SendFunc func(msg string)
	// ReceiveFunc overrides the default event delivery (used by WebSocket transport).
	ReceiveFunc func(ev events.Event)

	// agent is the body this descriptor is subscribed under.
	agent string
	// consume discards narration already delivered through the bus from the
	// router's buffer for that agent.
	consume func(agent string)

	mu     sync.Mutex
	closed bool
	outbox chan events.Event
}

// NewDescriptor wraps a net.Conn into a Descriptor.
func NewDescriptor(id int, conn net.Conn) *Descriptor {
	now := time.Now()
	return &Descriptor{
		ID:       id,
		Conn:     conn,
		State:    ConnLogin,
		Addr:     conn.RemoteAddr().String(),
		ConnTime: now,
		LastCmd:  now,
		Retries:  3,
		OOB:      oob.NewCapabilities(),
	}
}

// Agent returns the body the descriptor currently follows.
func (d *Descriptor) Agent() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.agent
}

func (d *Descriptor) setAgent(agent string) {
	d.mu.Lock()
	d.agent = agent
	d.mu.Unlock()
}

// Send writes a line to the client connection.
func (d *Descriptor) Send(msg string) {
	if d.SendFunc != nil {
		d.SendFunc(msg)
		return
	}
	// Telnet lines end with \r\n.
	msg = strings.ReplaceAll(strings.TrimRight(msg, "\r\n"), "\n", "\r\n") + "\r\n"
	d.write([]byte(msg))
}

// SendNoNewline writes a string without appending a newline.
func (d *Descriptor) SendNoNewline(msg string) {
	if d.SendFunc != nil {
		d.SendFunc(msg)
		return
	}
	d.write([]byte(strings.ReplaceAll(msg, "\n", "\r\n")))
}

func (d *Descriptor) write(data []byte) {
	d.writeRaw(encodeWithCharmap(d.Charset, data))
}

// writeRaw writes bytes as they are, for telnet sequences.
func (d *Descriptor) writeRaw(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.Conn == nil {
		return
	}
	d.Conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	n, _ := d.Conn.Write(data)
	d.BytesSent += n
}

func (d *Descriptor) countSent(n int) {
	d.mu.Lock()
	d.BytesSent += n
	d.mu.Unlock()
}

func (d *Descriptor) countRecv(n int) {
	d.mu.Lock()
	d.BytesRecv += n
	d.mu.Unlock()
}

func (d *Descriptor) countCommand() {
	d.mu.Lock()
	d.CmdCount++
	d.mu.Unlock()
}

// Traffic returns the byte and command counters for the session.
func (d *Descriptor) Traffic() (sent, recv, cmds int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.BytesSent, d.BytesRecv, d.CmdCount
}

// SendGMCP frames data as a GMCP message if the client asked for pkg.
func (d *Descriptor) SendGMCP(pkg string, data any) {
	if d.OOB == nil || d.SendFunc != nil || !d.OOB.Wants(pkg) {
		return
	}
	buf, err := oob.EncodeGMCP(pkg, data)
	if err != nil {
		return
	}
	d.writeRaw(buf)
}

// Close shuts down the connection.
func (d *Descriptor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		if d.outbox != nil {
			close(d.outbox)
		}
		if d.Conn != nil {
			d.Conn.Close()
		}
	}
}

// IsClosed returns whether the connection has been closed.
func (d *Descriptor) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// StartOutbox moves bus delivery onto a writer goroutine, so a client that
// stops reading never blocks the emitter. A full queue closes the session.
// Without an outbox, Receive writes synchronously.
func (d *Descriptor) StartOutbox() {
	d.mu.Lock()
	if d.outbox != nil || d.closed {
		d.mu.Unlock()
		return
	}
	ch := make(chan events.Event, outboxSize)
	d.outbox = ch
	d.mu.Unlock()
	go func() {
		for ev := range ch {
			d.deliver(ev)
		}
	}()
}

// Receive implements events.Subscriber.
func (d *Descriptor) Receive(ev events.Event) {
	if ev.Type == events.EvRoomLog {
		return
	}
	if d.consume != nil && ev.Agent != "" {
		d.consume(ev.Agent)
	}
	d.mu.Lock()
	ch, closed := d.outbox, d.closed
	if closed {
		d.mu.Unlock()
		return
	}
	if ch == nil {
		d.mu.Unlock()
		d.deliver(ev)
		return
	}
	select {
	case ch <- ev:
		d.mu.Unlock()
		return
	default:
	}
	d.mu.Unlock()
	log.Printf("[%d] output queue full, disconnecting %s", d.ID, d.Addr)
	d.Close()
}

func (d *Descriptor) deliver(ev events.Event) {
	if d.IsClosed() {
		return
	}
	if d.ReceiveFunc != nil {
		d.ReceiveFunc(ev)
		return
	}
	if ev.Text == "" {
		return
	}
	d.Send(ev.Text)
	if d.OOB != nil && d.OOB.Wants(oob.GMCPPackage(ev.Type)) {
		if buf := oob.EncodeEvent(ev); buf != nil {
			d.writeRaw(buf)
		}
	}
}

// Closed implements events.Subscriber.
func (d *Descriptor) Closed() bool {
	return d.IsClosed()
}

// Compile-time check that Descriptor implements events.Subscriber.
var _ events.Subscriber = (*Descriptor)(nil)

// ConnManager tracks all active connections.
type ConnManager struct {
	mu          sync.RWMutex
	descriptors map[int]*Descriptor
	nextID      int
	byPlayer    map[string][]*Descriptor // player id -> connections (multi-login)
}

// NewConnManager creates a new connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		descriptors: make(map[int]*Descriptor),
		byPlayer:    make(map[string][]*Descriptor),
		nextID:      1,
	}
}

// Add registers a new descriptor.
func (cm *ConnManager) Add(d *Descriptor) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.descriptors[d.ID] = d
}

// Remove unregisters a descriptor.
func (cm *ConnManager) Remove(d *Descriptor) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.descriptors, d.ID)
	if d.PlayerID == "" {
		return
	}
	descs := cm.byPlayer[d.PlayerID]
	for i, dd := range descs {
		if dd.ID == d.ID {
			cm.byPlayer[d.PlayerID] = append(descs[:i], descs[i+1:]...)
			break
		}
	}
	if len(cm.byPlayer[d.PlayerID]) == 0 {
		delete(cm.byPlayer, d.PlayerID)
	}
}

// Login marks a descriptor connected as a player.
func (cm *ConnManager) Login(d *Descriptor, playerID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	d.State = ConnConnected
	d.PlayerID = playerID
	cm.byPlayer[playerID] = append(cm.byPlayer[playerID], d)
}

// NextID returns the next descriptor ID.
func (cm *ConnManager) NextID() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	id := cm.nextID
	cm.nextID++
	return id
}

// GetByPlayer returns all descriptors for a given player.
func (cm *ConnManager) GetByPlayer(playerID string) []*Descriptor {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return append([]*Descriptor(nil), cm.byPlayer[playerID]...)
}

// IsConnected returns true if the player has at least one active connection.
func (cm *ConnManager) IsConnected(playerID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.byPlayer[playerID]) > 0
}

// AllDescriptors returns a snapshot of all active descriptors, by ID.
func (cm *ConnManager) AllDescriptors() []*Descriptor {
	cm.mu.RLock()
	descs := make([]*Descriptor, 0, len(cm.descriptors))
	for _, d := range cm.descriptors {
		descs = append(descs, d)
	}
	cm.mu.RUnlock()
	sort.Slice(descs, func(i, j int) bool { return descs[i].ID < descs[j].ID })
	return descs
}

// Count returns the number of active connections.
func (cm *ConnManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.descriptors)
}

// FormatIdleTime formats a duration as a human-readable idle time.
func FormatIdleTime(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	if secs < 3600 {
		return fmt.Sprintf("%dm", secs/60)
	}
	if secs < 86400 {
		return fmt.Sprintf("%dh", secs/3600)
	}
	return fmt.Sprintf("%dd", secs/86400)
}

// FormatConnTime formats a duration as connection time.
func FormatConnTime(d time.Duration) string {
	secs := int(d.Seconds())
	hours := secs / 3600
	mins := (secs % 3600) / 60
	return fmt.Sprintf("%02d:%02d", hours, mins)
}
