package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/crystal-mush/graphworld/pkg/boltstore"
	"github.com/crystal-mush/graphworld/pkg/events"
	"github.com/crystal-mush/graphworld/pkg/world"
	"github.com/gorilla/websocket"
)

// WebConfig holds configuration for the web server.
type WebConfig struct {
	Addr        string
	CORSOrigins []string
	RateLimit   int
	JWTSecret   string
	JWTExpiry   int
	AllowCreate bool
	CertFile    string
	KeyFile     string
	CertDir     string
}

// WebConfigFrom derives the web config from the game configuration.
func WebConfigFrom(gc *GameConf) WebConfig {
	return WebConfig{
		Addr:        fmt.Sprintf("%s:%d", gc.WebHost, gc.WebPort),
		CORSOrigins: gc.WebCORSOrigins,
		RateLimit:   gc.WebRateLimit,
		JWTSecret:   gc.JWTSecret,
		JWTExpiry:   gc.JWTExpiry,
		AllowCreate: gc.AllowCreate,
		CertFile:    gc.WebCertFile,
		KeyFile:     gc.WebKeyFile,
		CertDir:     gc.WebCertDir,
	}
}

// WebServer provides HTTP/WebSocket transport alongside the telnet server.
type WebServer struct {
	game     *Game
	cfg      WebConfig
	httpSrv  *http.Server
	mux      *http.ServeMux
	auth     *AuthService
	rl       *rateLimiter
	upgrader websocket.Upgrader
	metrics  *Metrics
}

// NewWebServer creates a web server bound to the game.
func NewWebServer(game *Game, cfg WebConfig) *WebServer {
	ws := &WebServer{
		game: game,
		cfg:  cfg,
		mux:  http.NewServeMux(),
		auth: NewAuthService(game, cfg.JWTSecret, cfg.JWTExpiry),
		rl:   newRateLimiter(cfg.RateLimit),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(cfg.CORSOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range cfg.CORSOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}
	ws.metrics = game.Metrics
	if ws.metrics == nil {
		ws.metrics = NewMetrics(game, game.startTime)
	}
	ws.registerRoutes()
	return ws
}

// Auth returns the auth service.
func (ws *WebServer) Auth() *AuthService { return ws.auth }

// Handler returns the full middleware chain, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.httpSrv.Handler }

func (ws *WebServer) registerRoutes() {
	handler := http.Handler(ws.mux)
	handler = rateLimitMiddleware(ws.rl, handler)
	handler = corsMiddleware(ws.cfg.CORSOrigins, handler)
	ws.httpSrv = &http.Server{
		Addr:              ws.cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)
	ws.mux.HandleFunc("POST /api/v1/auth/login", ws.handleAuthLogin)
	ws.mux.HandleFunc("POST /api/v1/auth/register", ws.handleAuthRegister)
	ws.mux.HandleFunc("POST /api/v1/auth/refresh", ws.handleAuthRefresh)
	ws.registerRESTRoutes()
	ws.mux.HandleFunc("GET /health", ws.handleHealth)
	ws.mux.Handle("GET /metrics", ws.metrics.Handler())
}

// Serve listens until ctx ends, then shuts down gracefully. It uses HTTPS
// when a certificate is configured.
func (ws *WebServer) Serve(ctx context.Context) error {
	tlsCfg, err := webTLS(ws.cfg.CertFile, ws.cfg.KeyFile, ws.cfg.CertDir)
	if err != nil {
		log.Printf("web: TLS setup failed (%v), falling back to HTTP", err)
		tlsCfg = nil
	}
	ln, err := net.Listen("tcp", ws.httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", ws.httpSrv.Addr, err)
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
		log.Printf("Web server listening on %s (HTTPS)", ln.Addr())
	} else {
		log.Printf("Web server listening on %s (HTTP)", ln.Addr())
	}

	go ws.rl.run(ctx, 5*time.Minute)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ws.httpSrv.Shutdown(sctx)
	}()

	if err := ws.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- Auth HTTP Handlers ---

type credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	PlayerID string `json:"player_id"`
	Body     string `json:"body,omitempty"`
}

// spawn gives an account's player a body, reporting "" when none is free.
func (ws *WebServer) spawn(acct *boltstore.Account) string {
	_, agent, err := ws.game.World.SpawnPlayer(acct.PlayerID)
	if err != nil {
		if !errors.Is(err, world.ErrNoBody) {
			log.Printf("web: spawn %s: %v", acct.Name, err)
		}
		return ""
	}
	return agent
}

func (ws *WebServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, acct, err := ws.auth.Login(req.Name, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, PlayerID: acct.PlayerID, Body: ws.spawn(acct)})
}

func (ws *WebServer) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	if !ws.cfg.AllowCreate {
		writeError(w, http.StatusForbidden, "account creation is disabled")
		return
	}
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" || !ValidName(req.Name) {
		writeError(w, http.StatusBadRequest, "invalid name or password")
		return
	}
	acct, err := ws.game.CreateAccount(req.Name, req.Password)
	if errors.Is(err, boltstore.ErrAccountExists) {
		writeError(w, http.StatusConflict, "name taken")
		return
	}
	if err != nil {
		log.Printf("web: register %s: %v", req.Name, err)
		writeError(w, http.StatusInternalServerError, "could not create account")
		return
	}
	token, err := ws.auth.Issue(acct)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	log.Printf("web: new account %s from %s", acct.Name, clientIP(r))
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token, PlayerID: acct.PlayerID, Body: ws.spawn(acct)})
}

func (ws *WebServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	newToken, err := ws.auth.RefreshToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": newToken})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"stats":  ws.game.Stats(),
	})
}

// --- WebSocket Handler ---

// WSMessage is the JSON message format for WebSocket communication.
type WSMessage struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Command  string          `json:"command,omitempty"`
	Name     string          `json:"name,omitempty"`
	Password string          `json:"password,omitempty"`
	Act      json.RawMessage `json:"act,omitempty"`
	Event    *events.Event   `json:"event,omitempty"`
	Data     map[string]any  `json:"data,omitempty"`
}

// wsConn holds the WebSocket connection and its write mutex.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (wc *wsConn) sendJSON(msg WSMessage) {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	wc.conn.WriteJSON(msg)
}

// newWSDescriptor creates a Descriptor whose output is JSON over ws.
func newWSDescriptor(game *Game, conn *websocket.Conn, addr string) (*Descriptor, *wsConn) {
	wc := &wsConn{conn: conn}
	now := time.Now()
	d := &Descriptor{
		ID:        game.Conns.NextID(),
		Conn:      conn.NetConn(),
		State:     ConnLogin,
		Addr:      addr,
		ConnTime:  now,
		LastCmd:   now,
		Retries:   3,
		Transport: TransportWebSocket,
	}
	d.SendFunc = func(msg string) {
		d.countSent(len(msg))
		wc.sendJSON(WSMessage{Type: "text", Text: msg})
	}
	d.ReceiveFunc = func(ev events.Event) {
		d.countSent(len(ev.Text))
		wc.sendJSON(WSMessage{Type: "event", Event: &ev})
	}
	return d, wc
}

// handleWebSocket upgrades the request and runs a session. A valid token
// logs the session in at once.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var claims *Claims
	if token, ok := bearerToken(r); ok {
		var err error
		if claims, err = ws.auth.ValidateToken(token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	d, wc := newWSDescriptor(ws.game, conn, clientIP(r))
	d.StartOutbox()
	ws.game.Conns.Add(d)
	log.Printf("[ws:%d] New connection from %s", d.ID, d.Addr)

	if claims != nil {
		if acct, err := ws.account(claims.Account); err == nil {
			ws.loginWS(d, wc, acct)
		} else {
			wc.sendJSON(WSMessage{Type: "error", Text: "Account not found."})
		}
	} else {
		wc.sendJSON(WSMessage{Type: "welcome", Text: `Send {"type":"login","name":"...","password":"..."} to log in.`})
	}
	go ws.wsReadLoop(d, wc)
}

func (ws *WebServer) account(name string) (*boltstore.Account, error) {
	if ws.game.Store == nil {
		return nil, ErrNoStore
	}
	return ws.game.Store.GetAccount(name)
}

func (ws *WebServer) loginWS(d *Descriptor, wc *wsConn, acct *boltstore.Account) {
	wc.sendJSON(WSMessage{Type: "login", Data: map[string]any{"account": acct.Name, "player_id": acct.PlayerID}})
	ws.game.Attach(d, acct)
}

func (ws *WebServer) wsReadLoop(d *Descriptor, wc *wsConn) {
	defer func() {
		ws.game.Detach(d)
		wc.conn.Close()
		log.Printf("[ws:%d] WebSocket closed from %s", d.ID, d.Addr)
	}()

	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws:%d] read error: %v", d.ID, err)
			}
			return
		}
		d.countRecv(len(data))
		d.LastCmd = time.Now()

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			wc.sendJSON(WSMessage{Type: "error", Text: "Invalid JSON message"})
			continue
		}

		switch msg.Type {
		case "login":
			ws.handleWSLogin(d, wc, msg)
		case "command":
			if d.State != ConnConnected {
				ws.handleWSLogin(d, wc, msg)
				continue
			}
			ws.game.Run(d, msg.Command)
		case "act":
			if d.State != ConnConnected {
				wc.sendJSON(WSMessage{Type: "error", Text: "Log in first."})
				continue
			}
			ws.handleWSAct(d, wc, msg.Act)
		case "who":
			wc.sendJSON(WSMessage{Type: "who", Data: map[string]any{"players": ws.game.Who()}})
		default:
			wc.sendJSON(WSMessage{Type: "error", Text: fmt.Sprintf("Unknown message type: %s", msg.Type)})
		}
		if d.IsClosed() {
			return
		}
	}
}

func (ws *WebServer) handleWSLogin(d *Descriptor, wc *wsConn, msg WSMessage) {
	if d.State == ConnConnected {
		wc.sendJSON(WSMessage{Type: "error", Text: "Already logged in."})
		return
	}
	name, password := msg.Name, msg.Password
	if name == "" && msg.Command != "" {
		var command string
		command, name, password = ParseConnect(msg.Command)
		if !strings.HasPrefix(command, "co") {
			wc.sendJSON(WSMessage{Type: "error", Text: "Use: connect <name> <password>"})
			return
		}
	}
	acct, err := ws.game.Login(name, password)
	if err != nil {
		wc.sendJSON(WSMessage{Type: "error", Text: "Invalid credentials"})
		d.Retries--
		if d.Retries <= 0 {
			d.Close()
		}
		return
	}
	ws.loginWS(d, wc, acct)
}

func (ws *WebServer) handleWSAct(d *Descriptor, wc *wsConn, raw json.RawMessage) {
	req, err := ParseAct(raw)
	if err != nil {
		wc.sendJSON(WSMessage{Type: "error", Text: err.Error()})
		return
	}
	if req.Action != nil {
		if err := ws.game.Narrate(d.PlayerID, d.Wizard, *req.Action); err != nil {
			wc.sendJSON(WSMessage{Type: "error", Text: err.Error()})
		}
		return
	}
	ws.game.Run(d, req.Command)
}
