// Package demoserver is a small local chat backend. Its page posts every
// prompt to /backend-api/conversation, so pointing the capture target at it
// exercises the daemon end to end with a local browser.
package demoserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/raysh454/convotap/internal/logging"
)

// EndpointPath is the conversation API path the demo page calls.
const EndpointPath = "/backend-api/conversation"

// ConversationRequest is the body the demo page posts.
type ConversationRequest struct {
	Action         string    `json:"action"`
	ConversationID string    `json:"conversation_id"`
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
}

type Message struct {
	ID      string  `json:"id"`
	Author  Author  `json:"author"`
	Content Content `json:"content"`
	Status  string  `json:"status,omitempty"`
}

type Author struct {
	Role string `json:"role"`
}

type Content struct {
	ContentType string   `json:"content_type"`
	Parts       []string `json:"parts"`
}

// ConversationReply is one reply document, or one event of a streamed reply.
type ConversationReply struct {
	ConversationID string  `json:"conversation_id"`
	Message        Message `json:"message"`
	Error          *string `json:"error"`
}

// DemoServer serves the demo chat page and its conversation API.
type DemoServer struct {
	cfg    Config
	router chi.Router
	logger logging.Logger

	mu    sync.Mutex
	turns map[string]int // conversation id -> replies sent
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("demoserver")
	}
	s := &DemoServer{
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: logger,
		turns:  make(map[string]int),
	}
	s.routes()
	return s
}

func (s *DemoServer) routes() {
	r := s.router
	r.Get("/", s.indexHandler)
	r.Get("/c/{id}", s.indexHandler)
	r.Post(EndpointPath, s.conversationHandler)
	r.Get("/backend-api/models", s.modelsHandler)
}

// ServeHTTP implements http.Handler.
func (s *DemoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled.
func (s *DemoServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.logger.Info("demo chat listening",
		logging.Field{Key: "url", Value: "http://" + s.cfg.Addr + "/"},
		logging.Field{Key: "endpoint", Value: "http://" + s.cfg.Addr + EndpointPath})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// indexHandler serves the chat page. /c/{id} resumes a conversation.
func (s *DemoServer) indexHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, pageData{ConversationID: id, Endpoint: EndpointPath}); err != nil {
		s.logger.Warn("rendering index", logging.Field{Key: "error", Value: err.Error()})
	}
}

// conversationHandler answers a prompt with a JSON reply, or with an event
// stream when ?stream=1 is set or the client accepts text/event-stream.
func (s *DemoServer) conversationHandler(w http.ResponseWriter, r *http.Request) {
	var req ConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid JSON body"})
		return
	}
	prompt := lastUserPrompt(req.Messages)
	if prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "no user message"})
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	turn := s.nextTurn(req.ConversationID)
	answer := replyText(prompt, turn)
	s.logger.Debug("conversation turn",
		logging.Field{Key: "conversation_id", Value: req.ConversationID},
		logging.Field{Key: "turn", Value: turn})

	if r.URL.Query().Get("stream") == "1" || strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.stream(w, r, req.ConversationID, answer)
		return
	}
	writeJSON(w, http.StatusOK, reply(req.ConversationID, uuid.NewString(), answer, "finished_successfully"))
}

func (s *DemoServer) stream(w http.ResponseWriter, r *http.Request, conversationID, answer string) {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	msgID := uuid.NewString()
	words := strings.Fields(answer)
	for i := range words {
		status := "in_progress"
		if i == len(words)-1 {
			status = "finished_successfully"
		}
		b, _ := json.Marshal(reply(conversationID, msgID, strings.Join(words[:i+1], " "), status))
		fmt.Fprintf(w, "data: %s\n\n", b)
		if flusher != nil {
			flusher.Flush()
		}
		if s.cfg.ChunkDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.cfg.ChunkDelay):
			}
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// modelsHandler is a second API endpoint on the same origin that the capture
// must ignore.
func (s *DemoServer) modelsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models": []map[string]string{{"slug": "demo", "title": "Demo echo model"}},
	})
}

func (s *DemoServer) nextTurn(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[conversationID]++
	return s.turns[conversationID]
}

func lastUserPrompt(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Author.Role != "user" {
			continue
		}
		return strings.TrimSpace(strings.Join(msgs[i].Content.Parts, "\n"))
	}
	return ""
}

func replyText(prompt string, turn int) string {
	return fmt.Sprintf("Reply %d: you said %q.", turn, prompt)
}

func reply(conversationID, msgID, text, status string) ConversationReply {
	return ConversationReply{
		ConversationID: conversationID,
		Message: Message{
			ID:      msgID,
			Author:  Author{Role: "assistant"},
			Content: Content{ContentType: "text", Parts: []string{text}},
			Status:  status,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
