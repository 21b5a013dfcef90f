package domain

import "time"

// EventType classifies entries in the append-only event log.
type EventType string

const (
	EventSystem  EventType = "SYSTEM"
	EventTrade   EventType = "TRADE"
	EventClose   EventType = "CLOSE"
	EventComment EventType = "COMMENT"
	EventNews    EventType = "NEWS"
)

// Event is one timestamped entry in the engine's event log. AgentID is
// empty for system and news events. Delivery order to sinks matches
// generation order.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	AgentID   string    `json:"agent_id,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
