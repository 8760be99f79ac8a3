package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type restClient struct {
	t   *testing.T
	srv *httptest.Server
}

func newRESTClient(t *testing.T) (*restClient, *Game, map[string]string) {
	t.Helper()
	conf := DefaultGameConf()
	conf.Wizards = []string{"ann"}
	conf.ReplyPoll = 10
	game, ids := newTestGame(t, conf)
	ws := NewWebServer(game, WebConfig{JWTSecret: "test-secret", AllowCreate: true})
	srv := httptest.NewServer(ws.Handler())
	t.Cleanup(srv.Close)
	return &restClient{t: t, srv: srv}, game, ids
}

// do sends body (marshalled unless already a string) and decodes the JSON
// reply into out when out is non-nil.
func (c *restClient) do(method, path, token string, body any, out any) int {
	c.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			c.t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	if err != nil {
		c.t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (c *restClient) register(name string) tokenResponse {
	c.t.Helper()
	var tr tokenResponse
	if code := c.do("POST", "/api/v1/auth/register", "", credentials{Name: name, Password: "pw"}, &tr); code != http.StatusCreated {
		c.t.Fatalf("register %s: status %d", name, code)
	}
	return tr
}

type actResponse struct {
	OK    bool  `json:"ok"`
	Reply Reply `json:"reply"`
}

func TestRESTRegisterActObserve(t *testing.T) {
	c, _, _ := newRESTClient(t)
	ann := c.register("ann")
	if ann.Token == "" || ann.PlayerID != "ann" || ann.Body == "" {
		t.Fatalf("register = %+v", ann)
	}
	if code := c.do("POST", "/api/v1/auth/register", "", credentials{Name: "ann", Password: "x"}, nil); code != http.StatusConflict {
		t.Errorf("duplicate register status %d", code)
	}

	var act actResponse
	if code := c.do("POST", "/api/v1/act", ann.Token, `{"command":"look","wait":1}`, &act); code != http.StatusOK {
		t.Fatalf("act status %d", code)
	}
	if !act.OK || act.Reply.Agent != ann.Body || !strings.Contains(act.Reply.Text, "A drafty hall.") {
		t.Errorf("act = %+v", act)
	}
	if act.Reply.ID == "" {
		t.Error("reply has no id")
	}

	var obs Reply
	if code := c.do("GET", "/api/v1/observe?wait=0", ann.Token, nil, &obs); code != http.StatusOK {
		t.Fatalf("observe status %d", code)
	}
	if obs.Text != "" || obs.Timeout {
		t.Errorf("empty observe = %+v", obs)
	}
	if code := c.do("GET", "/api/v1/observe?wait=1", ann.Token, nil, &obs); code != http.StatusOK {
		t.Fatalf("observe status %d", code)
	}
	if !obs.Timeout {
		t.Errorf("long poll with nothing to say = %+v", obs)
	}

	var login tokenResponse
	if code := c.do("POST", "/api/v1/auth/login", "", credentials{Name: "ann", Password: "pw"}, &login); code != http.StatusOK {
		t.Fatalf("login status %d", code)
	}
	if login.Body != ann.Body {
		t.Errorf("login body %q, registered with %q", login.Body, ann.Body)
	}
	if code := c.do("POST", "/api/v1/auth/login", "", credentials{Name: "ann", Password: "nope"}, nil); code != http.StatusUnauthorized {
		t.Errorf("bad login status %d", code)
	}
}

func TestRESTActRejects(t *testing.T) {
	c, _, _ := newRESTClient(t)
	bob := c.register("bob")
	tests := []struct {
		name  string
		token string
		body  string
		want  int
	}{
		{"no token", "", `{"command":"look"}`, http.StatusUnauthorized},
		{"bad token", "garbage", `{"command":"look"}`, http.StatusUnauthorized},
		{"schema", bob.Token, `{"command":"look","action":{"text":"x"}}`, http.StatusBadRequest},
		{"not json", bob.Token, `look`, http.StatusBadRequest},
		{"narration by a player", bob.Token, `{"action":{"text":"The sky falls."}}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		if code := c.do("POST", "/api/v1/act", tt.token, tt.body, nil); code != tt.want {
			t.Errorf("%s: status %d, want %d", tt.name, code, tt.want)
		}
	}
}

func TestRESTWizardNarration(t *testing.T) {
	c, _, ids := newRESTClient(t)
	ann := c.register("ann")
	bob := c.register("bob")
	c.do("GET", "/api/v1/observe", bob.Token, nil, &Reply{})

	if code := c.do("POST", "/api/v1/act", ann.Token, `{"action":{"text":"Thunder rolls."}}`, nil); code != http.StatusOK {
		t.Fatalf("narration status %d", code)
	}
	var obs Reply
	c.do("GET", "/api/v1/observe", bob.Token, nil, &obs)
	if !strings.Contains(obs.Text, "Thunder rolls.") {
		t.Errorf("bob observed %q", obs.Text)
	}

	body := `{"action":{"text":"Wind.","room_id":"` + ids["yard"] + `"}}`
	if code := c.do("POST", "/api/v1/act", ann.Token, body, nil); code != http.StatusOK {
		t.Errorf("narration to another room: status %d", code)
	}
	if code := c.do("POST", "/api/v1/act", ann.Token, `{"action":{"text":"Wind.","room_id":"nowhere"}}`, nil); code != http.StatusBadRequest {
		t.Errorf("narration to a missing room: status %d", code)
	}
}

func TestRESTActionsAndRoomLog(t *testing.T) {
	c, _, ids := newRESTClient(t)
	ann := c.register("ann")

	var acts struct {
		Actions []string `json:"actions"`
	}
	if code := c.do("GET", "/api/v1/actions", ann.Token, nil, &acts); code != http.StatusOK {
		t.Fatalf("actions status %d", code)
	}
	if len(acts.Actions) == 0 {
		t.Error("no possible actions")
	}

	c.do("POST", "/api/v1/act", ann.Token, `{"command":"say hello there"}`, nil)
	var log struct {
		Room  string `json:"room"`
		Turns []struct {
			Actor string `json:"actor"`
			Text  string `json:"text"`
		} `json:"turns"`
	}
	if code := c.do("GET", "/api/v1/rooms/"+ids["hall"]+"/log", ann.Token, nil, &log); code != http.StatusOK {
		t.Fatalf("room log status %d", code)
	}
	if len(log.Turns) == 0 || log.Turns[len(log.Turns)-1].Actor != ann.Body {
		t.Errorf("room log = %+v", log)
	}
}

func TestRESTPublicEndpoints(t *testing.T) {
	c, _, _ := newRESTClient(t)
	var health struct {
		Status string `json:"status"`
	}
	if code := c.do("GET", "/health", "", nil, &health); code != http.StatusOK || health.Status != "ok" {
		t.Errorf("health = %d %+v", code, health)
	}
	var who struct {
		Count int `json:"count"`
	}
	if code := c.do("GET", "/api/v1/who", "", nil, &who); code != http.StatusOK || who.Count != 0 {
		t.Errorf("who = %d %+v", code, who)
	}

	resp, err := http.Get(c.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), "graphworld_rooms 2") {
		t.Errorf("metrics status %d:\n%s", resp.StatusCode, data)
	}
}
