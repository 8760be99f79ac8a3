package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/graphworld/pkg/boltstore"
	"github.com/crystal-mush/graphworld/pkg/oob"
)

// Config holds telnet server configuration.
type Config struct {
	Addr        string
	IdleTimeout time.Duration
	MaxRetries  int
	AllowCreate bool
	WelcomeText string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        ":4000",
		IdleTimeout: time.Hour,
		MaxRetries:  3,
		AllowCreate: true,
		WelcomeText: WelcomeText,
	}
}

// ConfigFrom derives a telnet config from the game configuration.
func ConfigFrom(gc *GameConf) Config {
	cfg := DefaultConfig()
	cfg.Addr = fmt.Sprintf(":%d", gc.Port)
	if gc.IdleTimeout > 0 {
		cfg.IdleTimeout = time.Duration(gc.IdleTimeout) * time.Second
	}
	if gc.MaxLoginRetries > 0 {
		cfg.MaxRetries = gc.MaxLoginRetries
	}
	cfg.AllowCreate = gc.AllowCreate
	return cfg
}

// Server is the telnet front end.
type Server struct {
	Config Config
	Game   *Game

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a telnet server for a game.
func NewServer(game *Game, cfg Config) *Server {
	if cfg.WelcomeText == "" {
		cfg.WelcomeText = WelcomeText
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Server{Config: cfg, Game: game}
}

// Listen opens the listening socket and returns its address.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.Config.Addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", s.Config.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	log.Printf("Telnet listening on %s", ln.Addr())
	return ln.Addr(), nil
}

// Serve accepts connections until ctx ends, then closes the listener and
// waits for sessions to finish. It listens first if Listen was not called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	go func() {
		<-ctx.Done()
		ln.Close()
		for _, d := range s.Game.Conns.AllDescriptors() {
			if d.Transport == TransportTCP {
				d.Send("GAME: Shutting down.")
				d.Close()
			}
		}
	}()

	s.acceptLoop(ln)
	s.wg.Wait()
	return nil
}

// acceptLoop accepts connections on the given listener until it is closed.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection manages a single client connection lifecycle.
func (s *Server) handleConnection(conn net.Conn) {
	id := s.Game.Conns.NextID()
	d := NewDescriptor(id, conn)
	d.Retries = s.Config.MaxRetries
	d.Charset = s.Game.charset
	d.StartOutbox()
	s.Game.Conns.Add(d)

	log.Printf("[%d] New connection from %s", d.ID, d.Addr)

	defer func() {
		s.Game.Detach(d)
		log.Printf("[%d] Connection closed from %s", d.ID, d.Addr)
	}()

	d.writeRaw(oob.Offer())
	d.SendNoNewline(s.Config.WelcomeText)

	scanner := bufio.NewScanner(d.Conn)
	scanner.Buffer(make([]byte, 8192), 8192)

	for {
		if s.Config.IdleTimeout > 0 {
			d.Conn.SetReadDeadline(time.Now().Add(s.Config.IdleTimeout))
		}
		if !scanner.Scan() {
			var ne net.Error
			if errors.As(scanner.Err(), &ne) && ne.Timeout() {
				d.Send("You have been idle too long. Goodbye.")
			}
			return
		}
		if d.IsClosed() {
			return
		}

		raw := scanner.Bytes()
		d.countRecv(len(raw) + 1)
		text, opts, subs := oob.Split(raw)
		if len(opts) > 0 || len(subs) > 0 {
			d.OOB.Apply(opts, subs)
		}
		line := decodeWithCharmap(d.Charset, []byte(stripTelnet(string(text))))
		line = strings.TrimRight(line, "\r\n")
		d.LastCmd = time.Now()

		if d.State == ConnLogin {
			s.handleLoginCommand(d, line)
		} else {
			s.handleCommand(d, line)
		}

		if d.IsClosed() {
			return
		}
	}
}

// handleCommand runs input from a logged-in session.
func (s *Server) handleCommand(d *Descriptor, line string) {
	trimmed := strings.TrimSpace(line)
	switch strings.ToUpper(trimmed) {
	case "":
		return
	case "QUIT":
		d.Send(QuitText)
		d.Close()
		return
	case "WHO":
		s.Game.ShowWho(d)
		return
	}
	s.Game.Run(d, trimmed)
	s.Game.sendGMCPState(d)
}

// handleLoginCommand processes pre-login commands.
func (s *Server) handleLoginCommand(d *Descriptor, input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}

	upper := strings.ToUpper(input)
	if upper == "QUIT" {
		d.Send(QuitText)
		d.Close()
		return
	}
	if upper == "WHO" {
		s.Game.ShowWho(d)
		return
	}

	command, user, password := ParseConnect(input)
	switch {
	case strings.HasPrefix(command, "co"):
		s.handleConnect(d, user, password)
	case strings.HasPrefix(command, "cr"):
		s.handleCreate(d, user, password)
	default:
		d.Send("Commands: connect, create, WHO, QUIT")
	}
}

// handleConnect authenticates and logs in a player.
func (s *Server) handleConnect(d *Descriptor, user, password string) {
	if user == "" {
		d.Send("Usage: connect <name> <password>")
		return
	}
	acct, err := s.Game.Login(user, password)
	if err != nil {
		if !errors.Is(err, boltstore.ErrBadCredentials) {
			log.Printf("[%d] login %s: %v", d.ID, user, err)
		}
		d.Send("Either that account does not exist, or has a different password.")
		d.Retries--
		if d.Retries <= 0 {
			d.Send("Too many failed attempts. Disconnecting.")
			d.Close()
		}
		return
	}
	d.Send(fmt.Sprintf("Welcome back, %s!", acct.Name))
	s.Game.Attach(d, acct)
	s.Game.sendGMCPState(d)
}

// handleCreate creates an account and logs it in.
func (s *Server) handleCreate(d *Descriptor, user, password string) {
	if !s.Config.AllowCreate {
		d.Send("Account creation is disabled here.")
		return
	}
	if user == "" || password == "" {
		d.Send("Usage: create <name> <password>")
		return
	}
	if !ValidName(user) {
		d.Send("Names are 2 to 24 letters, digits, '-' or '_', starting with a letter.")
		return
	}
	acct, err := s.Game.CreateAccount(user, password)
	if errors.Is(err, boltstore.ErrAccountExists) {
		d.Send("That name is already taken.")
		return
	}
	if err != nil {
		log.Printf("[%d] create %s: %v", d.ID, user, err)
		d.Send("Could not create that account.")
		return
	}
	log.Printf("[%d] New account %s created from %s", d.ID, acct.Name, d.Addr)
	d.Send(fmt.Sprintf("Welcome, %s!", acct.Name))
	s.Game.Attach(d, acct)
	s.Game.sendGMCPState(d)
}

// stripTelnet removes telnet IAC command sequences from input.
func stripTelnet(s string) string {
	var buf strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == 0xFF && i+2 < len(s) {
			// IAC command: skip 3 bytes (IAC + cmd + option)
			i += 3
			continue
		}
		if s[i] == 0xFF && i+1 < len(s) {
			i += 2
			continue
		}
		if s[i] < 32 && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' {
			i++
			continue
		}
		buf.WriteByte(s[i])
		i++
	}
	return buf.String()
}
