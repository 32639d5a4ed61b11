// Package agent drives one chat session: mode routing, the two-stage
// planning and analysis pipeline, and the ordered event stream the
// dashboard consumes.
package agent

import "context"

// EventType tags one streamed event.
type EventType string

const (
	EventUser              EventType = "user"
	EventThought           EventType = "thought"
	EventPlan              EventType = "plan"
	EventNavigation        EventType = "navigation"
	EventAnswer            EventType = "answer"
	EventChat              EventType = "chat"
	EventConfirmation      EventType = "confirmation"
	EventClusterPrediction EventType = "cluster_prediction"
	EventGlowOn            EventType = "glow_on"
	EventComplete          EventType = "complete"
	EventError             EventType = "error"
)

// Event is one frame of the session stream. Content is human readable;
// Data carries the structured payload when the event has one.
type Event struct {
	Type    EventType      `json:"type"`
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
}

// eventBuffer bounds the session channel. A slow consumer blocks the
// producing session rather than queueing unboundedly.
const eventBuffer = 16

// emit sends ev unless the session is cancelled. Returns false once the
// context is done; callers stop producing at that point.
func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
