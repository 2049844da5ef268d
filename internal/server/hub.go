package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// ClientCount reports the number of subscribed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers to every connected client without blocking. A client
// that cannot keep up drops events rather than stalling the rest.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastScrollToBottom(chatID string) {
	h.broadcastEvent(ScrollToBottomEvent{
		Event:  newEvent("scroll_to_bottom", time.Now().UTC()),
		ChatID: chatID,
	})
}

func (h *Hub) BroadcastProposeFinish(chatID, userText, botText string) {
	h.broadcastEvent(ProposeFinishEvent{
		Event:    newEvent("propose_finish", time.Now().UTC()),
		ChatID:   chatID,
		UserText: userText,
		BotText:  botText,
	})
}

func (h *Hub) BroadcastChatClosed(chatID string) {
	h.broadcastEvent(ChatClosedEvent{
		Event:  newEvent("chat_closed", time.Now().UTC()),
		ChatID: chatID,
	})
}

func (h *Hub) BroadcastReviewReady(chatID, reviewID string) {
	h.broadcastEvent(ReviewReadyEvent{
		Event:    newEvent("review_ready", time.Now().UTC()),
		ChatID:   chatID,
		ReviewID: reviewID,
	})
}

func (h *Hub) BroadcastRefetch() {
	h.broadcastEvent(RefetchEvent{
		Event: newEvent("refetch", time.Now().UTC()),
	})
}

func (h *Hub) BroadcastSubscriptionChanged(active bool) {
	h.broadcastEvent(SubscriptionChangedEvent{
		Event:  newEvent("subscription_changed", time.Now().UTC()),
		Active: active,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
