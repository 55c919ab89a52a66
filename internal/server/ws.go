package server

import (
	"context"
	"net/http"

	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/model"
)

// handleWS godoc
// @Summary Live popup channel
// @Description Pushes every DATA_UPDATED broadcast. Typed messages sent by the client are routed and answered on the same socket.
// @Tags messages
// @Router /ws [get]
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// conn allows one reader and one writer; replies are funnelled to the
	// writer loop below.
	replies := make(chan model.Message, 8)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			var msg model.Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			reply, err := s.messages.Dispatch(ctx, msg)
			if err != nil {
				s.logger.Warn("routing websocket message", logging.Field{Key: "type", Value: string(msg.Type)}, logging.Field{Key: "error", Value: err.Error()})
				reply = model.ErrorMessage(err)
			}
			select {
			case replies <- reply:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("popup connected", logging.Field{Key: "remote", Value: r.RemoteAddr})
	defer s.logger.Info("popup disconnected", logging.Field{Key: "remote", Value: r.RemoteAddr})

	for {
		select {
		case <-readerDone:
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case reply := <-replies:
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}
}
