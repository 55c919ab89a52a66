package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/messaging"
	"github.com/raysh454/convotap/internal/model"
	_ "github.com/raysh454/convotap/internal/server/docs" // swagger docs
	"github.com/raysh454/convotap/internal/store"
)

// Capturer is the part of the capture manager the API exposes.
type Capturer interface {
	Recheck(ctx context.Context, tabID, url string) string
	Tracked() []model.TrackedTab
	PendingCount() int
	Forward(ctx context.Context, fwd model.ConversationResponse) (*model.Snapshot, error)
}

// Deps are the already-constructed components the server fronts.
type Deps struct {
	Store   store.SnapshotStore
	Capture Capturer
	Hub     *messaging.Hub
	Logger  logging.Logger
}

// Server is the HTTP + WebSocket API surface of the daemon.
type Server struct {
	cfg      Config
	store    store.SnapshotStore
	capture  Capturer
	hub      *messaging.Hub
	messages *messaging.Router
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

var errBadPayload = errors.New("bad message payload")

func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server: nil snapshot store")
	}
	if deps.Capture == nil {
		return nil, errors.New("server: nil capture manager")
	}
	if deps.Hub == nil {
		return nil, errors.New("server: nil hub")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}

	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		capture:  deps.Capture,
		hub:      deps.Hub,
		messages: messaging.NewRouter(),
		router:   chi.NewRouter(),
		logger:   logger,
		upgrader: websocket.Upgrader{
			// popups connect from the local terminal, not from web pages
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	if err := s.registerMessages(); err != nil {
		return nil, err
	}
	s.routes()
	return s, nil
}

// Messages returns the typed message router.
func (s *Server) Messages() *messaging.Router { return s.messages }

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/latest", s.optionsHandler("GET"))
	r.Options("/tabs", s.optionsHandler("GET"))
	r.Options("/debugger/check", s.optionsHandler("POST"))
	r.Options("/messages", s.optionsHandler("POST"))

	r.Get("/healthz", s.handleHealth)
	r.Get("/latest", s.handleLatest)
	r.Get("/tabs", s.handleListTabs)
	r.Post("/debugger/check", s.handleDebuggerCheck)
	r.Post("/messages", s.handleMessage)

	r.Get("/ws", s.handleWS)

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && r.Method == http.MethodPost {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body_bytes", Value: len(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Debug("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- HTTP handlers ---

// handleHealth godoc
// @Summary Liveness and capture state
// @Tags daemon
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		TrackedTabs:     len(s.capture.Tracked()),
		PendingRequests: s.capture.PendingCount(),
	})
}

// handleLatest godoc
// @Summary Latest captured exchange
// @Tags capture
// @Produce json
// @Success 200 {object} model.Snapshot
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /latest [get]
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Latest(r.Context())
	if errors.Is(err, store.ErrNoSnapshot) {
		writeError(w, http.StatusNotFound, store.ErrNoSnapshot.Error())
		return
	}
	if err != nil {
		s.logger.Warn("reading latest snapshot", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListTabs godoc
// @Summary Tabs with an active debugger attachment
// @Tags capture
// @Produce json
// @Success 200 {array} model.TrackedTab
// @Router /tabs [get]
func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.capture.Tracked())
}

// handleDebuggerCheck godoc
// @Summary Re-check the debugger attachment of a tab
// @Description Attaches when the tab is on the target site. An empty body checks the active tab.
// @Tags capture
// @Accept json
// @Produce json
// @Param request body DebuggerCheckRequest false "Tab to check"
// @Success 200 {object} DebuggerCheckResponse
// @Failure 400 {object} ErrorResponse
// @Router /debugger/check [post]
func (s *Server) handleDebuggerCheck(w http.ResponseWriter, r *http.Request) {
	var body DebuggerCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("decoding debugger check body", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	status := s.capture.Recheck(r.Context(), body.TabID, body.TabURL)
	s.logger.Info("debugger check", logging.Field{Key: "tab_id", Value: body.TabID}, logging.Field{Key: "status", Value: status})
	writeJSON(w, http.StatusOK, DebuggerCheckResponse{Status: status})
}

// handleMessage godoc
// @Summary Route a typed popup message
// @Description Accepts get-latest, REQUEST_DEBUGGER_CHECK and conversation-response and returns the reply message.
// @Tags messages
// @Accept json
// @Produce json
// @Param message body MessageEnvelope true "Message"
// @Success 200 {object} MessageEnvelope
// @Failure 400 {object} MessageEnvelope
// @Failure 500 {object} MessageEnvelope
// @Router /messages [post]
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg model.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorMessage(fmt.Errorf("invalid JSON: %w", err)))
		return
	}

	reply, err := s.messages.Dispatch(r.Context(), msg)
	if err != nil {
		s.logger.Warn("routing message", logging.Field{Key: "type", Value: string(msg.Type)}, logging.Field{Key: "error", Value: err.Error()})
		writeJSON(w, messageErrorStatus(err), model.ErrorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func messageErrorStatus(err error) int {
	switch {
	case errors.Is(err, messaging.ErrUnknownMessageType), errors.Is(err, errBadPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
