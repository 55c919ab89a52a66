// Package app wires the daemon together: configuration, the browser driver,
// the capture manager, the snapshot store and the API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/raysh454/convotap/internal/browser"
	"github.com/raysh454/convotap/internal/capture"
	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/messaging"
	"github.com/raysh454/convotap/internal/server"
	"github.com/raysh454/convotap/internal/store"
)

// BrowserDriver is a browser.Host with a connection lifecycle.
type BrowserDriver interface {
	browser.Host
	Start(ctx context.Context) error
	Close() error
}

// Application is the global runtime state container of the daemon.
type Application struct {
	Config  *Config
	Logger  logging.Logger
	Store   store.SnapshotStore
	Browser BrowserDriver
	Capture *capture.Manager
	Hub     *messaging.Hub
	Server  *server.Server

	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewApplication builds the daemon from cfg with a Chrome driver.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		return nil, errors.New("app: nil logger")
	}
	if err := cfg.Resolve(); err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}
	chrome, err := browser.NewChrome(cfg.Browser, cfg.Capture.TargetEndpoint, logger)
	if err != nil {
		return nil, fmt.Errorf("new browser: %w", err)
	}
	return NewApplicationWith(cfg, logger, chrome)
}

// NewApplicationWith builds the daemon around an already constructed driver.
// cfg must already be resolved.
func NewApplicationWith(cfg *Config, logger logging.Logger, drv BrowserDriver) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if logger == nil {
		return nil, errors.New("app: nil logger")
	}
	if drv == nil {
		return nil, errors.New("app: nil browser driver")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := store.New(cfg.Store, logger.With(logging.Module("store")))
	if err != nil {
		return nil, fmt.Errorf("new store: %w", err)
	}

	hub := messaging.NewHub()

	mgr, err := capture.NewManager(cfg.Capture, drv, st, hub, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("new capture manager: %w", err)
	}

	srv, err := server.NewServer(cfg.Server, server.Deps{
		Store:   st,
		Capture: mgr,
		Hub:     hub,
		Logger:  logger.With(logging.Module("server")),
	})
	if err != nil {
		_ = mgr.Close()
		_ = st.Close()
		return nil, fmt.Errorf("new server: %w", err)
	}

	return &Application{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Browser:  drv,
		Capture:  mgr,
		Hub:      hub,
		Server:   srv,
		serveErr: make(chan error, 1),
	}, nil
}

// Start binds the API listener, connects the browser and attaches to every
// open target tab.
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.New("application already started")
	}

	a.httpServer = a.Server.HTTPServer()
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.httpServer.Addr, err)
	}
	a.listener = ln

	if err := a.Browser.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("start browser: %w", err)
	}
	a.started = true

	go func() {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serveErr <- err
		}
		close(a.serveErr)
	}()

	a.Logger.Info("daemon listening",
		logging.Field{Key: "addr", Value: ln.Addr().String()},
		logging.Field{Key: "target", Value: a.Capture.Matcher().Endpoint()})

	results, err := a.Capture.AttachExisting(ctx)
	if err != nil {
		a.Logger.Warn("listing open tabs", logging.Field{Key: "error", Value: err.Error()})
	}
	for _, r := range results {
		a.Logger.Info(r.String(), logging.Field{Key: "tab_id", Value: r.TabID})
	}
	return nil
}

// Addr returns the bound API address, or "" before Start.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Run starts the daemon and blocks until ctx is cancelled or the API server
// fails, then shuts down.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-a.serveErr:
		if ok {
			runErr = fmt.Errorf("api server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops the API server, the capture manager and the browser
// connection, then closes the store.
func (a *Application) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	hs := a.httpServer
	a.mu.Unlock()

	a.Logger.Info("application shutdown initiated")

	var firstErr error
	if hs != nil {
		if err := hs.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("shutdown api server: %w", err)
		}
	}
	if err := a.closeComponents(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *Application) closeComponents() error {
	var firstErr error
	if err := a.Capture.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close capture manager: %w", err)
	}
	if err := a.Browser.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close browser: %w", err)
	}
	a.Hub.Close()
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close store: %w", err)
	}
	return firstErr
}
