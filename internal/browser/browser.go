package browser

import (
	"context"
	"errors"
)

var (
	ErrNotAttached     = errors.New("tab is not attached")
	ErrAlreadyAttached = errors.New("tab is already attached")
	ErrNotStarted      = errors.New("browser connection not started")
)

type EventKind string

const (
	EventRequestSent     EventKind = "request-sent"
	EventLoadingFinished EventKind = "loading-finished"
	EventDetached        EventKind = "detached"
	EventTabUpdated      EventKind = "tab-updated"
	EventTabRemoved      EventKind = "tab-removed"
)

// Event is a host notification. Which fields are set depends on Kind:
// request-sent carries RequestID, URL, Method and PostData; loading-finished
// carries RequestID; detached carries Reason; tab-updated carries URL.
type Event struct {
	Kind      EventKind
	TabID     string
	RequestID string
	URL       string
	Method    string
	PostData  string
	Reason    string
}

// EventHandler receives events in arrival order on a single goroutine.
// It must return quickly.
type EventHandler func(Event)

// Tab is an open page target.
type Tab struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Debugger is the per-tab debugging capability.
type Debugger interface {
	Attach(ctx context.Context, tabID string) error
	Detach(ctx context.Context, tabID string) error
	// EnableNetwork turns on delivery of request-sent and loading-finished
	// events for an attached tab.
	EnableNetwork(ctx context.Context, tabID string) error
	// ResponseBody returns the full body of a finished request.
	ResponseBody(ctx context.Context, tabID, requestID string) ([]byte, error)
}

// TabSource lists open tabs. Pages come first in most-recently-activated order.
type TabSource interface {
	Tabs(ctx context.Context) ([]Tab, error)
}

// Host is everything the capture manager needs from the browser.
type Host interface {
	Debugger
	TabSource
	SetEventHandler(h EventHandler)
}
