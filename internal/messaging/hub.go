package messaging

import (
	"sync"

	"github.com/raysh454/convotap/internal/model"
)

// DefaultSubscriberBuffer is the channel capacity handed to each subscriber.
const DefaultSubscriberBuffer = 16

// Hub fans broadcast messages out to every open popup.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan model.Message
	buffer int
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan model.Message), buffer: DefaultSubscriberBuffer}
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan model.Message, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.Message, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers msg to every subscriber without blocking. A subscriber
// whose buffer is full misses the message. Having no subscriber is not an
// error.
func (h *Hub) Publish(msg model.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		// Non-blocking send; drop if buffer is full.
		select {
		case ch <- msg:
		default:
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
