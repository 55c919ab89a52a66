// Package capture owns the debugging attachments of target tabs and turns
// observed conversation API exchanges into snapshots.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raysh454/convotap/internal/browser"
	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/model"
	"github.com/raysh454/convotap/internal/store"
	"github.com/raysh454/convotap/internal/utils"
)

// Broadcaster delivers live updates to open popups.
type Broadcaster interface {
	Publish(msg model.Message)
}

type pendingKey struct {
	tabID     string
	requestID string
}

// Manager is the single owner of capture state: tracked tabs, pending
// requests and per-tab attachment generations. Every state change happens
// under mu; host calls happen outside it and are re-validated against the
// tab's generation afterwards.
//
// Generations are drawn from one counter and never reused, so a tab that
// has none (zero) never matches work started under an earlier attachment.
// Only tracked or attaching tabs hold one.
type Manager struct {
	matcher     *utils.TargetMatcher
	host        browser.Host
	store       store.SnapshotStore
	bus         Broadcaster
	logger      logging.Logger
	attachDelay time.Duration
	source      string

	mu          sync.Mutex
	tracked     map[string]model.TrackedTab
	attaching   map[string]bool
	generations map[string]uint64
	epoch       uint64
	pending     map[pendingKey]*model.PendingRequest
	timers      map[string]*time.Timer
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a manager and registers it as the host's event handler.
func NewManager(cfg Config, host browser.Host, st store.SnapshotStore, bus Broadcaster, logger logging.Logger) (*Manager, error) {
	if host == nil {
		return nil, errors.New("capture: nil browser host")
	}
	if st == nil {
		return nil, errors.New("capture: nil snapshot store")
	}
	if logger == nil {
		return nil, errors.New("capture: nil logger")
	}
	matcher, err := utils.NewTargetMatcher(cfg.TargetOrigin, cfg.TargetEndpoint)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	if cfg.AttachDelay < 0 {
		cfg.AttachDelay = 0
	}
	if cfg.Source == "" {
		cfg.Source = model.SourceNetwork
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		matcher:     matcher,
		host:        host,
		store:       st,
		bus:         bus,
		logger:      logger.With(logging.Module("capture")),
		attachDelay: cfg.AttachDelay,
		source:      cfg.Source,
		tracked:     make(map[string]model.TrackedTab),
		attaching:   make(map[string]bool),
		generations: make(map[string]uint64),
		pending:     make(map[pendingKey]*model.PendingRequest),
		timers:      make(map[string]*time.Timer),
		ctx:         ctx,
		cancel:      cancel,
	}
	host.SetEventHandler(m.HandleEvent)
	return m, nil
}

// Matcher returns the target matching rule in use.
func (m *Manager) Matcher() *utils.TargetMatcher { return m.matcher }

// HandleEvent routes one host event. It never blocks on host calls.
func (m *Manager) HandleEvent(ev browser.Event) {
	switch ev.Kind {
	case browser.EventRequestSent:
		m.onRequestSent(ev)
	case browser.EventLoadingFinished:
		m.onLoadingFinished(ev)
	case browser.EventDetached:
		m.HandleDetached(ev.TabID, ev.Reason)
	case browser.EventTabUpdated:
		m.HandleTabUpdated(ev.TabID, ev.URL)
	case browser.EventTabRemoved:
		m.HandleTabRemoved(ev.TabID)
	default:
		m.logger.Debug("ignoring unknown browser event", logging.Field{Key: "kind", Value: string(ev.Kind)})
	}
}

// EnsureAttached attaches to the tab when url is on the target origin and
// the tab has no attachment yet, then enables network events. A tab that
// left the target origin is detached. Failures are reported in the result
// and logged; they are never returned as errors.
func (m *Manager) EnsureAttached(ctx context.Context, tabID, url string) AttachResult {
	if !m.matcher.OriginMatches(url) {
		m.Detach(ctx, tabID, "left target origin")
		return AttachResult{TabID: tabID, Status: StatusNotTarget}
	}

	m.mu.Lock()
	if _, ok := m.tracked[tabID]; ok {
		m.mu.Unlock()
		return AttachResult{TabID: tabID, Status: StatusAlreadyAttached}
	}
	if m.attaching[tabID] {
		m.mu.Unlock()
		return AttachResult{TabID: tabID, Status: StatusAttaching}
	}
	m.attaching[tabID] = true
	gen := m.generationLocked(tabID)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.attaching, tabID)
		m.mu.Unlock()
	}()

	err := m.host.Attach(ctx, tabID)
	if errors.Is(err, browser.ErrAlreadyAttached) {
		err = nil
	}
	if err != nil {
		m.mu.Lock()
		delete(m.tracked, tabID)
		if m.generations[tabID] == gen {
			delete(m.generations, tabID)
		}
		m.mu.Unlock()
		m.logger.Error("attaching debugger failed",
			logging.Field{Key: "tab_id", Value: tabID},
			logging.Field{Key: "error", Value: err})
		return AttachResult{TabID: tabID, Status: StatusFailed, Err: err}
	}

	m.mu.Lock()
	if m.generations[tabID] != gen {
		m.mu.Unlock()
		m.undoAttach(ctx, tabID)
		return AttachResult{TabID: tabID, Status: StatusSuperseded}
	}
	m.tracked[tabID] = model.TrackedTab{TabID: tabID, URL: url, AttachedAt: time.Now().UTC()}
	m.mu.Unlock()

	if err := m.host.EnableNetwork(ctx, tabID); err != nil {
		m.mu.Lock()
		stale := m.generations[tabID] != gen
		m.mu.Unlock()
		if stale {
			return AttachResult{TabID: tabID, Status: StatusSuperseded}
		}
		m.Detach(ctx, tabID, "enabling network failed")
		m.logger.Error("enabling network events failed",
			logging.Field{Key: "tab_id", Value: tabID},
			logging.Field{Key: "error", Value: err})
		return AttachResult{TabID: tabID, Status: StatusFailed, Err: fmt.Errorf("enable network: %w", err)}
	}

	m.mu.Lock()
	stale := m.generations[tabID] != gen
	m.mu.Unlock()
	if stale {
		return AttachResult{TabID: tabID, Status: StatusSuperseded}
	}

	m.logger.Info("debugger attached",
		logging.Field{Key: "tab_id", Value: tabID},
		logging.Field{Key: "url", Value: url})
	return AttachResult{TabID: tabID, Status: StatusAttached}
}

func (m *Manager) undoAttach(ctx context.Context, tabID string) {
	if err := m.host.Detach(ctx, tabID); err != nil {
		m.logger.Debug("undoing superseded attach failed",
			logging.Field{Key: "tab_id", Value: tabID},
			logging.Field{Key: "error", Value: err})
	}
	m.logger.Info("attach superseded", logging.Field{Key: "tab_id", Value: tabID})
}

// Detach drops the tab's attachment. It is idempotent: host errors are
// logged at debug level and the tab is untracked regardless. Pending
// requests of the tab are discarded and in-flight work for it goes stale.
func (m *Manager) Detach(ctx context.Context, tabID, reason string) {
	m.mu.Lock()
	_, wasTracked := m.tracked[tabID]
	purged := m.forgetLocked(tabID)
	m.stopTimerLocked(tabID)
	m.mu.Unlock()

	if !wasTracked {
		return
	}
	if err := m.host.Detach(ctx, tabID); err != nil {
		m.logger.Debug("detaching debugger failed",
			logging.Field{Key: "tab_id", Value: tabID},
			logging.Field{Key: "error", Value: err})
	}
	m.logger.Info("debugger detached",
		logging.Field{Key: "tab_id", Value: tabID},
		logging.Field{Key: "reason", Value: reason},
		logging.Field{Key: "purged", Value: purged})
}

// HandleDetached records a detach the host initiated, e.g. a DevTools
// window taking over the tab.
func (m *Manager) HandleDetached(tabID, reason string) {
	m.mu.Lock()
	_, wasTracked := m.tracked[tabID]
	purged := m.forgetLocked(tabID)
	m.mu.Unlock()

	if wasTracked {
		m.logger.Info("debugger detached by browser",
			logging.Field{Key: "tab_id", Value: tabID},
			logging.Field{Key: "reason", Value: reason},
			logging.Field{Key: "purged", Value: purged})
	}
}

// HandleTabUpdated reacts to a tab navigation: a tab on the target origin is
// attached after the attach delay, any other tab is detached at once.
func (m *Manager) HandleTabUpdated(tabID, url string) {
	if !m.matcher.OriginMatches(url) {
		m.Detach(m.ctx, tabID, "navigated away")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.stopTimerLocked(tabID)
	m.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(m.attachDelay, func() {
		defer m.wg.Done()
		m.mu.Lock()
		if m.timers[tabID] == t {
			delete(m.timers, tabID)
		}
		m.mu.Unlock()
		m.EnsureAttached(m.ctx, tabID, url)
	})
	m.timers[tabID] = t
}

// HandleTabRemoved detaches a closed tab.
func (m *Manager) HandleTabRemoved(tabID string) {
	m.Detach(m.ctx, tabID, "tab closed")
}

// AttachExisting attaches to every open tab on the target origin. It runs
// once at start-up.
func (m *Manager) AttachExisting(ctx context.Context) ([]AttachResult, error) {
	tabs, err := m.host.Tabs(ctx)
	if err != nil {
		m.logger.Error("listing open tabs failed", logging.Field{Key: "error", Value: err})
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	var results []AttachResult
	for _, tab := range tabs {
		if !m.matcher.OriginMatches(tab.URL) {
			continue
		}
		results = append(results, m.EnsureAttached(ctx, tab.ID, tab.URL))
	}
	return results, nil
}

// Recheck is the user-triggered attach check. An empty tabID means the
// active tab, and an empty url is looked up from the open tabs. The result
// is a status line; errors are folded into it.
func (m *Manager) Recheck(ctx context.Context, tabID, url string) string {
	if tabID == "" || url == "" {
		tabs, err := m.host.Tabs(ctx)
		if err != nil {
			m.logger.Warn("listing tabs for re-check failed", logging.Field{Key: "error", Value: err})
			return fmt.Sprintf("Error during debugger check: %v", err)
		}
		tab, ok := pickTab(tabs, tabID)
		if !ok {
			if tabID == "" {
				return "No active tab found."
			}
			return fmt.Sprintf("Tab %s not found.", tabID)
		}
		tabID = tab.ID
		if url == "" {
			url = tab.URL
		}
	}
	res := m.EnsureAttached(ctx, tabID, url)
	return res.String()
}

func pickTab(tabs []browser.Tab, tabID string) (browser.Tab, bool) {
	for _, tab := range tabs {
		if tabID == "" || tab.ID == tabID {
			return tab, true
		}
	}
	return browser.Tab{}, false
}

// Tracked lists attached tabs, oldest attachment first.
func (m *Manager) Tracked() []model.TrackedTab {
	m.mu.Lock()
	out := make([]model.TrackedTab, 0, len(m.tracked))
	for _, t := range m.tracked {
		out = append(out, t)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].AttachedAt.Equal(out[j].AttachedAt) {
			return out[i].TabID < out[j].TabID
		}
		return out[i].AttachedAt.Before(out[j].AttachedAt)
	})
	return out
}

// IsTracked reports whether the tab has an active attachment.
func (m *Manager) IsTracked(tabID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tracked[tabID]
	return ok
}

// PendingCount returns the number of requests waiting for their response.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Wait blocks until scheduled attaches and in-flight completions finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close stops scheduled attaches, cancels in-flight work and waits for it.
// Attachments are left to the host, which drops them with its connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for tabID := range m.timers {
		m.stopTimerLocked(tabID)
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *Manager) generationLocked(tabID string) uint64 {
	gen, ok := m.generations[tabID]
	if !ok {
		m.epoch++
		gen = m.epoch
		m.generations[tabID] = gen
	}
	return gen
}

// forgetLocked untracks the tab, ends its generation and purges its pending
// requests. It returns the number of purged requests.
func (m *Manager) forgetLocked(tabID string) int {
	delete(m.tracked, tabID)
	delete(m.generations, tabID)
	purged := 0
	for k := range m.pending {
		if k.tabID == tabID {
			delete(m.pending, k)
			purged++
		}
	}
	return purged
}

func (m *Manager) stopTimerLocked(tabID string) {
	t, ok := m.timers[tabID]
	if !ok {
		return
	}
	delete(m.timers, tabID)
	if t.Stop() {
		m.wg.Done()
	}
}
