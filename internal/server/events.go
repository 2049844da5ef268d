package server

import "time"

const EventVersion = 1

// Event is the envelope shared by every websocket push. Events are one-shot
// UI signals: delivery is at-most-once and nothing is replayed to clients
// that connect later.
type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type ScrollToBottomEvent struct {
	Event
	ChatID string `json:"chat_id"`
}

type ProposeFinishEvent struct {
	Event
	ChatID   string `json:"chat_id"`
	UserText string `json:"user_text"`
	BotText  string `json:"bot_text"`
}

type ChatClosedEvent struct {
	Event
	ChatID string `json:"chat_id"`
}

type ReviewReadyEvent struct {
	Event
	ChatID   string `json:"chat_id"`
	ReviewID string `json:"review_id"`
}

type RefetchEvent struct {
	Event
}

type SubscriptionChangedEvent struct {
	Event
	Active bool `json:"active"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
