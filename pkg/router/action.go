package router

import (
	"github.com/crystal-mush/graphworld/pkg/events"
)

// Action is the structured record of something that happened in the world.
// Verb handlers produce one per successful command; the engine builds them
// directly for system narration such as persona reveals and deaths.
type Action struct {
	Caller  string         `json:"caller"`         // verb name, "" for system narration
	Name    string         `json:"name,omitempty"` // canonical form of the command
	Text    string         `json:"text"`           // narration when no formatter applies
	RoomID  string         `json:"room_id"`
	Actors  []string       `json:"actors"` // primary actor first
	Present []string       `json:"present_agent_ids,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`

	// Exclude lists agents that must not hear this broadcast.
	Exclude []string `json:"-"`
}

// Actor returns the primary actor, or "".
func (a Action) Actor() string {
	if len(a.Actors) == 0 {
		return ""
	}
	return a.Actors[0]
}

// QuickReplies returns the opaque quick_replies metadata, if any.
func (a Action) QuickReplies() any {
	if a.Extra == nil {
		return nil
	}
	return a.Extra["quick_replies"]
}

// eventType maps a verb to the bus event type transports switch on.
func eventType(caller string) events.EventType {
	switch caller {
	case "say", "tell", "emote":
		return events.EvSay
	case "whisper":
		return events.EvWhisper
	case "go", "follow":
		return events.EvMove
	case "look":
		return events.EvRoom
	case "death":
		return events.EvDeath
	case "":
		return events.EvSystem
	}
	return events.EvText
}

// Observation is what an agent receives: narration plus transport metadata.
type Observation struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	QuickReplies any    `json:"quick_replies,omitempty"`
}
