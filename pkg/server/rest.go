package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/crystal-mush/graphworld/pkg/world"
)

const maxActBody = 64 << 10

// registerRESTRoutes registers the REST API on the web server's mux.
func (ws *WebServer) registerRESTRoutes() {
	ws.mux.HandleFunc("GET /api/v1/who", ws.handleWho)
	ws.mux.HandleFunc("POST /api/v1/act", requireAuth(ws.auth, ws.handleAct))
	ws.mux.HandleFunc("GET /api/v1/observe", requireAuth(ws.auth, ws.handleObserve))
	ws.mux.HandleFunc("GET /api/v1/actions", requireAuth(ws.auth, ws.handleActions))
	ws.mux.HandleFunc("GET /api/v1/rooms/{id}/log", requireAuth(ws.auth, ws.handleRoomLog))
}

func (ws *WebServer) handleWho(w http.ResponseWriter, r *http.Request) {
	entries := ws.game.Who()
	writeJSON(w, http.StatusOK, map[string]any{"players": entries, "count": len(entries)})
}

// handleAct runs a command line, or broadcasts a structured action for a
// wizard, then optionally waits for narration.
func (ws *WebServer) handleAct(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, err := ParseAct(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Action != nil {
		err := ws.game.Narrate(claims.PlayerID, claims.Wizard, *req.Action)
		switch {
		case errors.Is(err, ErrNotWizard):
			writeError(w, http.StatusForbidden, "wizard only")
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		}
		return
	}

	ok := ws.game.World.ExecutePlayer(claims.PlayerID, req.Command)
	rep, err := ws.game.Await(r.Context(), claims.PlayerID, time.Duration(req.Wait)*time.Second)
	if err != nil {
		writeError(w, http.StatusRequestTimeout, err.Error())
		return
	}
	if rep.Agent == "" {
		rep.Text = noBodyText
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": ok, "reply": rep})
}

// handleObserve long-polls for narration. wait is in seconds.
func (ws *WebServer) handleObserve(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if _, ok := ws.game.World.PlayerAgent(claims.PlayerID); !ok {
		writeError(w, http.StatusConflict, "no body; act *respawn* to find one")
		return
	}
	wait := 0
	if v := r.URL.Query().Get("wait"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "wait must be a non-negative number of seconds")
			return
		}
		wait = n
	}
	rep, err := ws.game.Await(r.Context(), claims.PlayerID, time.Duration(wait)*time.Second)
	if err != nil {
		writeError(w, http.StatusRequestTimeout, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleActions lists the commands the player's body could run now.
func (ws *WebServer) handleActions(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	var actions []string
	found := false
	ws.game.World.Locked(func(wd *world.World) {
		agent, ok := wd.BodyOf(claims.PlayerID)
		if !ok {
			return
		}
		found = true
		actions = wd.PossibleActions(agent, nil)
	})
	if !found {
		writeError(w, http.StatusConflict, "no body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

// handleRoomLog returns a room's recent conversation: from SQLite when
// scrollback is on, else from the in-memory buffer.
func (ws *WebServer) handleRoomLog(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("id")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if ws.game.SQLDB != nil {
		turns, err := ws.game.SQLDB.RoomHistory(room, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"room": room, "turns": turns})
		return
	}
	turns := ws.game.World.Router().RoomLog(room)
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": room, "turns": turns})
}
