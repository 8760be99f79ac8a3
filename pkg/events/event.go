package events

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText    EventType = iota // Narration for one agent
	EvSay                      // Speech heard in a room
	EvWhisper                  // Private speech
	EvMove                     // Arrive/depart
	EvRoom                     // Room description
	EvDeath                    // Death announcement
	EvSystem                   // Engine notices (respawn, no body, shutdown)
	EvRoomLog                  // A turn recorded in a room's conversation buffer
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvSay:
		return "say"
	case EvWhisper:
		return "whisper"
	case EvMove:
		return "move"
	case EvRoom:
		return "room"
	case EvDeath:
		return "death"
	case EvSystem:
		return "system"
	case EvRoomLog:
		return "room_log"
	default:
		return "unknown"
	}
}

// Event is one observation flowing from the engine to transports.
// Telnet uses Text; websocket and REST clients get the whole event.
type Event struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"-"`
	Kind         string         `json:"type"`
	Agent        string         `json:"agent,omitempty"` // Recipient ("" for room logs)
	Source       string         `json:"source,omitempty"`
	Room         string         `json:"room,omitempty"`
	Text         string         `json:"text"`
	QuickReplies any            `json:"quick_replies,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}
