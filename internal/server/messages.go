package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/raysh454/convotap/internal/capture"
	"github.com/raysh454/convotap/internal/model"
	"github.com/raysh454/convotap/internal/store"
)

func (s *Server) registerMessages() error {
	handlers := map[model.MessageType]func(context.Context, model.Message) (model.Message, error){
		model.MessageGetLatest:            s.onGetLatest,
		model.MessageRequestDebuggerCheck: s.onDebuggerCheck,
		model.MessageConversationResponse: s.onConversationResponse,
	}
	for t, h := range handlers {
		if err := s.messages.Handle(t, h); err != nil {
			return fmt.Errorf("register %s handler: %w", t, err)
		}
	}
	return nil
}

// onGetLatest replies with the stored snapshot, or a latest message without
// payload when nothing was captured yet.
func (s *Server) onGetLatest(ctx context.Context, _ model.Message) (model.Message, error) {
	snap, err := s.store.Latest(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return model.Message{Type: model.MessageLatest}, nil
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("read latest snapshot: %w", err)
	}
	return model.NewMessage(model.MessageLatest, snap)
}

func (s *Server) onDebuggerCheck(ctx context.Context, msg model.Message) (model.Message, error) {
	var req model.DebuggerCheckRequest
	if len(msg.Payload) > 0 {
		if err := msg.Decode(&req); err != nil {
			return model.Message{}, fmt.Errorf("%w: %v", errBadPayload, err)
		}
	}
	status := s.capture.Recheck(ctx, req.TabID, req.TabURL)
	return model.NewMessage(model.MessageDebuggerCheckResult, model.DebuggerCheckResult{Status: status})
}

func (s *Server) onConversationResponse(ctx context.Context, msg model.Message) (model.Message, error) {
	var fwd model.ConversationResponse
	if err := msg.Decode(&fwd); err != nil {
		return model.Message{}, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	snap, err := s.capture.Forward(ctx, fwd)
	if errors.Is(err, capture.ErrNotTargetEndpoint) {
		return model.Message{}, fmt.Errorf("%w: %v", errBadPayload, err)
	}
	if err != nil && snap == nil {
		return model.Message{}, err
	}
	// a snapshot that could not be persisted was still broadcast
	return model.NewMessage(model.MessageDataUpdated, snap)
}
