package server

import (
	"runtime"
	"time"
)

// ConnStats is a breakdown of current connections.
type ConnStats struct {
	Total       int `json:"total"`
	TCP         int `json:"tcp"`
	WebSocket   int `json:"websocket"`
	LoginScreen int `json:"login_screen"`
	Connected   int `json:"connected"`
	BytesSent   int `json:"bytes_sent"`
	BytesRecv   int `json:"bytes_recv"`
	Commands    int `json:"commands"`
}

// ConnectionStats returns a breakdown of current connections.
func (g *Game) ConnectionStats() ConnStats {
	var s ConnStats
	for _, d := range g.Conns.AllDescriptors() {
		s.Total++
		switch d.Transport {
		case TransportTCP:
			s.TCP++
		case TransportWebSocket:
			s.WebSocket++
		}
		switch d.State {
		case ConnLogin:
			s.LoginScreen++
		case ConnConnected:
			s.Connected++
		}
		sent, recv, cmds := d.Traffic()
		s.BytesSent += sent
		s.BytesRecv += recv
		s.Commands += cmds
	}
	return s
}

// ServerStats is the payload of the health endpoint.
type ServerStats struct {
	Version     string    `json:"version"`
	World       string    `json:"world"`
	Uptime      string    `json:"uptime"`
	Ticks       int       `json:"ticks"`
	Frozen      bool      `json:"frozen"`
	Entities    int       `json:"entities"`
	Rooms       int       `json:"rooms"`
	LiveNPCs    int       `json:"live_npcs"`
	Players     int       `json:"player_bodies"`
	Corpses     int       `json:"corpses"`
	Connections ConnStats `json:"connections"`
	HeapMB      float64   `json:"heap_alloc_mb"`
	Goroutines  int       `json:"goroutines"`
}

// Stats gathers world, connection and runtime statistics.
func (g *Game) Stats() ServerStats {
	ws := g.World.Stats()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return ServerStats{
		Version:     Version,
		World:       g.Conf.WorldName,
		Uptime:      time.Since(g.startTime).Round(time.Second).String(),
		Ticks:       g.World.Ticks(),
		Frozen:      g.World.Frozen(),
		Entities:    ws.Entities,
		Rooms:       ws.Rooms,
		LiveNPCs:    ws.LiveNPCs,
		Players:     ws.Humans,
		Corpses:     ws.Corpses,
		Connections: g.ConnectionStats(),
		HeapMB:      float64(mem.HeapAlloc) / 1024 / 1024,
		Goroutines:  runtime.NumGoroutine(),
	}
}
