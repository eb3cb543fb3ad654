package controller

import "reelengine/internal/domain"

// EventType identifies a playback event pushed to the UI layer.
type EventType string

const (
	EventReady       EventType = "ready"
	EventError       EventType = "error"
	EventSwap        EventType = "swap"
	EventState       EventType = "state"
	EventLike        EventType = "like"
	EventPlaceholder EventType = "placeholder"
)

// Event is one UI-facing notification. Index is the feed index the event
// refers to.
type Event struct {
	Type   EventType             `json:"type"`
	Index  int                   `json:"index"`
	ItemID string                `json:"itemId,omitempty"`
	Liked  bool                  `json:"liked,omitempty"`
	Reason string                `json:"reason,omitempty"`
	State  *domain.PlaybackState `json:"state,omitempty"`
}

// EventSink receives controller events. Publish must not block.
type EventSink interface {
	Publish(Event)
}
