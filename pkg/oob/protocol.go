// Package oob carries GMCP (Generic MUD Communication Protocol) data to
// telnet clients alongside the narration text, so MUD clients can keep a
// room panel and a health gauge up to date.
package oob

import (
	"encoding/json"
	"strings"
	"sync"
)

// Capabilities tracks what a connection has negotiated.
type Capabilities struct {
	mu       sync.Mutex
	gmcp     bool
	packages map[string]bool
}

// NewCapabilities returns a zero-value Capabilities (nothing negotiated).
func NewCapabilities() *Capabilities {
	return &Capabilities{packages: make(map[string]bool)}
}

// GMCP reports whether the client agreed to GMCP.
func (c *Capabilities) GMCP() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gmcp
}

// Wants reports whether a GMCP message in pkg should be sent. Clients
// that never sent Core.Supports get everything.
func (c *Capabilities) Wants(pkg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gmcp {
		return false
	}
	if len(c.packages) == 0 {
		return true
	}
	for name := pkg; name != ""; {
		if c.packages[name] {
			return true
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			break
		}
		name = name[:i]
	}
	return false
}

// Apply folds what Split found into the capabilities.
func (c *Capabilities) Apply(opts []Option, subs [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, o := range opts {
		if o.Opt != TeloptGMCP {
			continue
		}
		switch o.Cmd {
		case DO:
			c.gmcp = true
		case DONT:
			c.gmcp = false
		}
	}
	for _, sub := range subs {
		if len(sub) == 0 || sub[0] != TeloptGMCP {
			continue
		}
		pkg, data := ParseGMCPMessage(sub[1:])
		switch pkg {
		case "Core.Supports.Set", "Core.Supports.Add":
			if pkg == "Core.Supports.Set" {
				c.packages = make(map[string]bool)
			}
			for _, name := range supportList(data) {
				c.packages[name] = true
			}
		case "Core.Supports.Remove":
			for _, name := range supportList(data) {
				delete(c.packages, name)
			}
		}
	}
}

// supportList reads ["Room 1", "Char 1"] into package names.
func supportList(data []byte) []string {
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name, _, _ := strings.Cut(strings.TrimSpace(e), " ")
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
