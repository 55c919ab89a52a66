// Package messaging carries typed messages between the daemon and popups:
// a broadcast hub for live updates and a router for request/reply messages.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/raysh454/convotap/internal/model"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrDuplicateHandler   = errors.New("handler already registered for message type")
)

// HandlerFunc answers one message with a reply.
type HandlerFunc func(ctx context.Context, msg model.Message) (model.Message, error)

// Router dispatches a message to the one handler registered for its type.
type Router struct {
	mu       sync.RWMutex
	handlers map[model.MessageType]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: make(map[model.MessageType]HandlerFunc)}
}

// Handle registers h for t. Each type accepts exactly one handler.
func (r *Router) Handle(t model.MessageType, h HandlerFunc) error {
	if h == nil {
		return fmt.Errorf("nil handler for %q", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[t]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, t)
	}
	r.handlers[t] = h
	return nil
}

// Dispatch runs the handler for msg.Type and returns its reply.
func (r *Router) Dispatch(ctx context.Context, msg model.Message) (model.Message, error) {
	r.mu.RLock()
	h, ok := r.handlers[msg.Type]
	r.mu.RUnlock()
	if !ok {
		return model.Message{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
	return h(ctx, msg)
}

// Types lists the registered message types.
func (r *Router) Types() []model.MessageType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.MessageType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}
