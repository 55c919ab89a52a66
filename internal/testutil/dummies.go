// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without a real browser.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/raysh454/convotap/internal/browser"
	"github.com/raysh454/convotap/internal/logging"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ErrorCount returns the number of recorded error lines.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// ─── Browser ───────────────────────────────────────────────────────────

// FakeHost implements browser.Host in memory.
//
// Attach, EnableNetwork and ResponseBody consult the optional hooks first so
// tests can block or fail individual calls. Without hooks, Attach and
// EnableNetwork succeed and ResponseBody returns Bodies[requestID].
type FakeHost struct {
	AttachHook func(ctx context.Context, tabID string) error
	EnableHook func(ctx context.Context, tabID string) error
	DetachErr  error
	BodyHook   func(ctx context.Context, tabID, requestID string) ([]byte, error)
	TabsErr    error
	StartErr   error
	OpenTabs   []browser.Tab
	Bodies     map[string][]byte

	mu       sync.Mutex
	handler  browser.EventHandler
	attached map[string]bool
	started  bool
	closed   bool
	Attaches []string
	Detaches []string
	Enables  []string
}

var _ browser.Host = (*FakeHost)(nil)

// NewFakeHost returns a FakeHost listing tabs as open.
func NewFakeHost(tabs ...browser.Tab) *FakeHost {
	return &FakeHost{
		OpenTabs: tabs,
		Bodies:   make(map[string][]byte),
		attached: make(map[string]bool),
	}
}

// Start marks the fake as connected, or returns StartErr.
func (f *FakeHost) Start(context.Context) error {
	if f.StartErr != nil {
		return f.StartErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *FakeHost) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.attached = make(map[string]bool)
	return nil
}

// Started reports whether Start succeeded.
func (f *FakeHost) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Closed reports whether Close was called.
func (f *FakeHost) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeHost) SetEventHandler(h browser.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

// Emit delivers ev to the registered handler on the calling goroutine.
func (f *FakeHost) Emit(ev browser.Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (f *FakeHost) Attach(ctx context.Context, tabID string) error {
	f.mu.Lock()
	f.Attaches = append(f.Attaches, tabID)
	f.mu.Unlock()

	if f.AttachHook != nil {
		if err := f.AttachHook(ctx, tabID); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attached == nil {
		f.attached = make(map[string]bool)
	}
	if f.attached[tabID] {
		return browser.ErrAlreadyAttached
	}
	f.attached[tabID] = true
	return nil
}

func (f *FakeHost) Detach(_ context.Context, tabID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Detaches = append(f.Detaches, tabID)
	if f.DetachErr != nil {
		return f.DetachErr
	}
	if !f.attached[tabID] {
		return browser.ErrNotAttached
	}
	delete(f.attached, tabID)
	return nil
}

func (f *FakeHost) EnableNetwork(ctx context.Context, tabID string) error {
	f.mu.Lock()
	f.Enables = append(f.Enables, tabID)
	f.mu.Unlock()
	if f.EnableHook != nil {
		return f.EnableHook(ctx, tabID)
	}
	return nil
}

func (f *FakeHost) ResponseBody(ctx context.Context, tabID, requestID string) ([]byte, error) {
	if f.BodyHook != nil {
		return f.BodyHook(ctx, tabID, requestID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.Bodies[requestID]
	if !ok {
		return nil, errors.New("no resource with given identifier found")
	}
	return body, nil
}

func (f *FakeHost) Tabs(context.Context) ([]browser.Tab, error) {
	if f.TabsErr != nil {
		return nil, f.TabsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]browser.Tab(nil), f.OpenTabs...), nil
}

// SetBody registers the response body for requestID.
func (f *FakeHost) SetBody(requestID string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Bodies == nil {
		f.Bodies = make(map[string][]byte)
	}
	f.Bodies[requestID] = body
}

// IsAttached reports whether the fake currently holds a session for tabID.
func (f *FakeHost) IsAttached(tabID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached[tabID]
}

// AttachCount returns how many times Attach was called for tabID.
func (f *FakeHost) AttachCount(tabID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.Attaches {
		if id == tabID {
			n++
		}
	}
	return n
}

// DetachCount returns how many times Detach was called for tabID.
func (f *FakeHost) DetachCount(tabID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.Detaches {
		if id == tabID {
			n++
		}
	}
	return n
}
