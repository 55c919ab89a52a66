package browser

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/convotap/internal/logging"
)

// Chrome drives a Chromium browser over the DevTools protocol.
//
// One browser connection watches targets for the tab lifecycle and carries a
// flattened debugging session per attached tab. Detaching ends the session
// and never closes the tab itself.
type Chrome struct {
	cfg     Config
	pattern string
	logger  logging.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	mu      sync.Mutex
	handler EventHandler
	tabs    map[string]*tabConn
	urls    map[string]string
	bodies  map[bodyKey]bodyResult

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup
}

type tabConn struct {
	ctx    context.Context
	cancel context.CancelFunc
	target *chromedp.Target
}

// do runs action on the tab session. It gives up when either ctx or the
// session ends.
func (t *tabConn) do(ctx context.Context, action chromedp.Action) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.ctx, cancel)
	defer stop()
	return action.Do(cdp.WithExecutor(ctx, t.target))
}

type bodyKey struct {
	tabID     string
	requestID string
}

type bodyResult struct {
	body []byte
	err  error
}

var _ Host = (*Chrome)(nil)

// NewChrome prepares a browser driver. pattern is the request URL paused in
// intercept mode. Nothing connects until Start.
func NewChrome(cfg Config, pattern string, logger logging.Logger) (*Chrome, error) {
	if logger == nil {
		return nil, fmt.Errorf("browser: nil logger provided")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeNetwork
	}
	if cfg.Mode != ModeNetwork && cfg.Mode != ModeIntercept {
		return nil, fmt.Errorf("browser: unknown capture mode %q", cfg.Mode)
	}
	if cfg.Mode == ModeIntercept && pattern == "" {
		return nil, fmt.Errorf("browser: intercept mode needs a URL pattern")
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	if cfg.DebugPort <= 0 {
		cfg.DebugPort = DefaultConfig().DebugPort
	}

	return &Chrome{
		cfg:     cfg,
		pattern: pattern,
		logger:  logger.With(logging.Module("browser")),
		tabs:    make(map[string]*tabConn),
		urls:    make(map[string]string),
		bodies:  make(map[bodyKey]bodyResult),
		events:  make(chan Event, cfg.EventBuffer),
		done:    make(chan struct{}),
	}, nil
}

// SetEventHandler registers the single event handler. Call before Start.
func (c *Chrome) SetEventHandler(h EventHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Start connects to (or launches) the browser, turns on target discovery
// and starts the event dispatcher.
func (c *Chrome) Start(ctx context.Context) error {
	// Tab sessions outlive ctx; Close tears them down without closing tabs.
	ctx = context.WithoutCancel(ctx)
	if c.cfg.CDPURL != "" {
		c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(ctx, c.cfg.CDPURL)
		c.logger.Info("connecting to browser", logging.Field{Key: "url", Value: c.cfg.CDPURL})
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", c.cfg.Headless),
			chromedp.Flag("remote-debugging-port", strconv.Itoa(c.cfg.DebugPort)),
		)
		if c.cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
		}
		if c.cfg.UserDataDir != "" {
			opts = append(opts, chromedp.UserDataDir(c.cfg.UserDataDir))
		}
		c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
		c.logger.Info("launching browser",
			logging.Field{Key: "headless", Value: c.cfg.Headless},
			logging.Field{Key: "debug_port", Value: c.cfg.DebugPort})
	}

	c.browserCtx, c.browserStop = chromedp.NewContext(c.allocCtx)

	// Targets allocates the browser connection without opening a tab.
	if _, err := chromedp.Targets(c.browserCtx); err != nil {
		c.stopConnections()
		return fmt.Errorf("connect to browser: %w", err)
	}

	chromedp.ListenBrowser(c.browserCtx, c.onBrowserEvent)

	b := chromedp.FromContext(c.browserCtx).Browser
	if err := target.SetDiscoverTargets(true).Do(cdp.WithExecutor(c.browserCtx, b)); err != nil {
		c.stopConnections()
		return fmt.Errorf("enable target discovery: %w", err)
	}

	c.wg.Add(1)
	go c.dispatch()

	c.logger.Info("browser connected", logging.Field{Key: "mode", Value: string(c.cfg.Mode)})
	return nil
}

// Close detaches every tab and drops the browser connections. A launched
// browser is shut down.
func (c *Chrome) Close() error {
	c.mu.Lock()
	conns := make([]*tabConn, 0, len(c.tabs))
	for id, conn := range c.tabs {
		conns = append(conns, conn)
		delete(c.tabs, id)
	}
	c.mu.Unlock()
	for _, conn := range conns {
		if err := c.release(conn.ctx, conn.cancel, true); err != nil {
			c.logger.Debug("detaching on close failed", logging.Field{Key: "error", Value: err})
		}
	}

	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.wg.Wait()
	c.stopConnections()
	return nil
}

func (c *Chrome) stopConnections() {
	if c.browserStop != nil {
		c.browserStop()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
}

func (c *Chrome) dispatch() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			c.mu.Lock()
			h := c.handler
			c.mu.Unlock()
			if h != nil {
				h(ev)
			}
		}
	}
}

// emit queues an event. It blocks when the queue is full rather than
// dropping lifecycle events.
func (c *Chrome) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Tabs lists open page targets.
func (c *Chrome) Tabs(ctx context.Context) ([]Tab, error) {
	if c.browserCtx == nil {
		return nil, ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := chromedp.Targets(c.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	tabs := make([]Tab, 0, len(infos))
	for _, info := range infos {
		if tab, ok := tabFromInfo(info); ok {
			tabs = append(tabs, tab)
		}
	}
	return tabs, nil
}

// Attach opens a debugging session on an existing tab.
func (c *Chrome) Attach(ctx context.Context, tabID string) error {
	if c.browserCtx == nil {
		return ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	_, exists := c.tabs[tabID]
	c.mu.Unlock()
	if exists {
		return ErrAlreadyAttached
	}

	tabCtx, cancel := chromedp.NewContext(c.browserCtx, chromedp.WithTargetID(target.ID(tabID)))
	chromedp.ListenTarget(tabCtx, func(ev any) { c.onTabEvent(tabID, ev) })

	// Run without actions only attaches.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = c.release(tabCtx, cancel, true)
		return fmt.Errorf("attach to tab %s: %w", tabID, err)
	}
	conn := &tabConn{ctx: tabCtx, cancel: cancel, target: chromedp.FromContext(tabCtx).Target}

	c.mu.Lock()
	if _, raced := c.tabs[tabID]; raced {
		c.mu.Unlock()
		_ = c.release(tabCtx, cancel, true)
		return ErrAlreadyAttached
	}
	c.tabs[tabID] = conn
	c.mu.Unlock()

	c.logger.Debug("attached to tab", logging.Field{Key: "tab_id", Value: tabID})
	return nil
}

// Detach ends the tab's debugging session. The tab stays open.
func (c *Chrome) Detach(_ context.Context, tabID string) error {
	c.mu.Lock()
	conn, ok := c.tabs[tabID]
	delete(c.tabs, tabID)
	c.dropBodiesLocked(tabID)
	c.mu.Unlock()
	if !ok {
		return ErrNotAttached
	}
	if err := c.release(conn.ctx, conn.cancel, true); err != nil {
		return fmt.Errorf("detach from tab %s: %w", tabID, err)
	}
	c.logger.Debug("detached from tab", logging.Field{Key: "tab_id", Value: tabID})
	return nil
}

// release ends a tab context without closing the tab. chromedp closes the
// target of a cancelled context that still holds one, so the session is
// detached here and taken from the context first. detach is false when the
// browser already ended the session.
func (c *Chrome) release(tabCtx context.Context, cancel context.CancelFunc, detach bool) error {
	var err error
	if cc := chromedp.FromContext(tabCtx); cc != nil && cc.Target != nil {
		sessionID := cc.Target.SessionID
		cc.Target = nil
		if detach && sessionID != "" {
			ctx, stop := context.WithTimeout(context.Background(), time.Second)
			err = target.DetachFromTarget().WithSessionID(sessionID).Do(cdp.WithExecutor(ctx, cc.Browser))
			stop()
		}
	}
	cancel()
	return err
}

func (c *Chrome) dropBodiesLocked(tabID string) {
	for k := range c.bodies {
		if k.tabID == tabID {
			delete(c.bodies, k)
		}
	}
}

// EnableNetwork enables the Network domain, or the Fetch domain with a
// response-stage pattern in intercept mode.
func (c *Chrome) EnableNetwork(ctx context.Context, tabID string) error {
	conn, err := c.conn(tabID)
	if err != nil {
		return err
	}

	var action chromedp.Action = network.Enable()
	if c.cfg.Mode == ModeIntercept {
		action = fetch.Enable().WithPatterns([]*fetch.RequestPattern{{
			URLPattern:   c.pattern,
			RequestStage: fetch.RequestStageResponse,
		}})
	}
	if err := conn.do(ctx, action); err != nil {
		return fmt.Errorf("enable %s capture on tab %s: %w", c.cfg.Mode, tabID, err)
	}
	return nil
}

// ResponseBody returns the body of a finished request. In intercept mode the
// body was read while the response was paused and is handed out once.
func (c *Chrome) ResponseBody(ctx context.Context, tabID, requestID string) ([]byte, error) {
	if c.cfg.Mode == ModeIntercept {
		key := bodyKey{tabID: tabID, requestID: requestID}
		c.mu.Lock()
		res, ok := c.bodies[key]
		delete(c.bodies, key)
		c.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("no intercepted body for request %s", requestID)
		}
		return res.body, res.err
	}

	conn, err := c.conn(tabID)
	if err != nil {
		return nil, err
	}
	var body []byte
	err = conn.do(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		b, err := network.GetResponseBody(network.RequestID(requestID)).Do(ctx)
		body = b
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("get response body: %w", err)
	}
	return body, nil
}

func (c *Chrome) conn(tabID string) (*tabConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.tabs[tabID]
	if !ok {
		return nil, ErrNotAttached
	}
	return conn, nil
}

// onBrowserEvent runs on chromedp's event loop and must not block on CDP calls.
func (c *Chrome) onBrowserEvent(ev any) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		c.trackTarget(e.TargetInfo)
	case *target.EventTargetInfoChanged:
		c.trackTarget(e.TargetInfo)
	case *target.EventTargetDestroyed:
		c.forgetTarget(string(e.TargetID))
	case *target.EventTargetCrashed:
		c.forgetTarget(string(e.TargetID))
	}
}

func (c *Chrome) trackTarget(info *target.Info) {
	tab, ok := tabFromInfo(info)
	if !ok {
		return
	}
	c.mu.Lock()
	prev, known := c.urls[tab.ID]
	c.urls[tab.ID] = tab.URL
	c.mu.Unlock()
	if known && prev == tab.URL {
		return
	}
	c.emit(Event{Kind: EventTabUpdated, TabID: tab.ID, URL: tab.URL})
}

func (c *Chrome) forgetTarget(tabID string) {
	c.mu.Lock()
	_, known := c.urls[tabID]
	delete(c.urls, tabID)
	c.mu.Unlock()
	if known {
		c.emit(Event{Kind: EventTabRemoved, TabID: tabID})
	}
}

// onTabEvent runs on chromedp's event loop for one tab session.
func (c *Chrome) onTabEvent(tabID string, ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		// chromedp enables the Network domain on every session; in intercept
		// mode the paused response reports the exchange instead.
		if c.cfg.Mode == ModeIntercept || e.Request == nil {
			return
		}
		c.emit(Event{
			Kind:      EventRequestSent,
			TabID:     tabID,
			RequestID: string(e.RequestID),
			URL:       e.Request.URL,
			Method:    e.Request.Method,
			PostData:  postData(e.Request),
		})
	case *network.EventLoadingFinished:
		if c.cfg.Mode == ModeIntercept {
			return
		}
		c.emit(Event{Kind: EventLoadingFinished, TabID: tabID, RequestID: string(e.RequestID)})
	case *fetch.EventRequestPaused:
		conn, err := c.conn(tabID)
		if err != nil {
			return
		}
		c.wg.Add(1)
		go c.resolvePaused(conn, tabID, e)
	case *inspector.EventDetached:
		c.mu.Lock()
		conn, ok := c.tabs[tabID]
		delete(c.tabs, tabID)
		c.dropBodiesLocked(tabID)
		c.mu.Unlock()
		if ok {
			_ = c.release(conn.ctx, conn.cancel, false)
		}
		c.emit(Event{Kind: EventDetached, TabID: tabID, Reason: string(e.Reason)})
	}
}

// resolvePaused reads the paused response body, lets the response continue
// and reports the exchange as request-sent followed by loading-finished.
func (c *Chrome) resolvePaused(conn *tabConn, tabID string, e *fetch.EventRequestPaused) {
	defer c.wg.Done()

	var res bodyResult
	err := conn.do(conn.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		res.body, res.err = fetch.GetResponseBody(e.RequestID).Do(ctx)
		return fetch.ContinueRequest(e.RequestID).Do(ctx)
	}))
	if err != nil {
		c.logger.Warn("continuing paused request failed",
			logging.Field{Key: "tab_id", Value: tabID},
			logging.Field{Key: "request_id", Value: string(e.RequestID)},
			logging.Field{Key: "error", Value: err})
	}
	if e.Request == nil {
		return
	}

	requestID := string(e.RequestID)
	c.mu.Lock()
	c.bodies[bodyKey{tabID: tabID, requestID: requestID}] = res
	c.mu.Unlock()

	c.emit(Event{
		Kind:      EventRequestSent,
		TabID:     tabID,
		RequestID: requestID,
		URL:       e.Request.URL,
		Method:    e.Request.Method,
		PostData:  postData(e.Request),
	})
	c.emit(Event{Kind: EventLoadingFinished, TabID: tabID, RequestID: requestID})
}
