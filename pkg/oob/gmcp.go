package oob

import (
	"encoding/json"
	"fmt"

	"github.com/crystal-mush/graphworld/pkg/events"
)

// Offer is sent at connect to propose GMCP.
func Offer() []byte {
	return []byte{IAC, WILL, TeloptGMCP}
}

// GMCPPackage maps event types to GMCP package names.
func GMCPPackage(evType events.EventType) string {
	switch evType {
	case events.EvSay:
		return "Comm.Room.Text"
	case events.EvWhisper:
		return "Comm.Private.Text"
	case events.EvMove, events.EvRoom:
		return "Room.Info"
	case events.EvDeath:
		return "Char.Death"
	default:
		return ""
	}
}

// EncodeGMCP frames data as IAC SB 201 <package> <space> <json> IAC SE.
func EncodeGMCP(pkg string, data any) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("oob: %s: %w", pkg, err)
	}
	payload := pkg + " " + string(jsonData)
	buf := make([]byte, 0, len(payload)+5)
	buf = append(buf, IAC, SB, TeloptGMCP)
	buf = append(buf, payload...)
	buf = append(buf, IAC, SE)
	return buf, nil
}

// EncodeEvent encodes a bus event for GMCP, or returns nil if the event
// type has no package.
func EncodeEvent(ev events.Event) []byte {
	pkg := GMCPPackage(ev.Type)
	if pkg == "" || pkg == "Room.Info" {
		return nil
	}
	buf, err := EncodeGMCP(pkg, map[string]any{
		"source": ev.Source,
		"room":   ev.Room,
		"text":   ev.Text,
	})
	if err != nil {
		return nil
	}
	return buf
}

// RoomInfo is the Room.Info payload.
type RoomInfo struct {
	ID     string   `json:"num"`
	Name   string   `json:"name"`
	Exits  []string `json:"exits"`
	Agents []string `json:"agents,omitempty"`
}

// Vitals is the Char.Vitals payload.
type Vitals struct {
	Agent    string `json:"agent"`
	Health   int    `json:"hp"`
	Gold     int    `json:"gold"`
	Carrying int    `json:"carrying"`
}

// ParseGMCPMessage splits a GMCP payload into package name and JSON data.
func ParseGMCPMessage(data []byte) (pkg string, jsonData []byte) {
	for i, b := range data {
		if b == ' ' {
			return string(data[:i]), data[i+1:]
		}
	}
	return string(data), nil
}
