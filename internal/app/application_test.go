package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/raysh454/convotap/internal/app"
	"github.com/raysh454/convotap/internal/browser"
	"github.com/raysh454/convotap/internal/model"
	"github.com/raysh454/convotap/internal/store"
	"github.com/raysh454/convotap/internal/testutil"
)

const (
	chatURL     = "https://chatgpt.com/c/abc"
	endpointURL = "https://chatgpt.com/backend-api/conversation"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg := app.DefaultConfig()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.StorageRoot = t.TempDir()
	cfg.Store.Driver = store.DriverMemory
	cfg.Capture.AttachDelay = time.Millisecond
	if err := cfg.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return cfg
}

func newTestApp(t *testing.T, host *testutil.FakeHost) *app.Application {
	t.Helper()
	a, err := app.NewApplicationWith(testConfig(t), &testutil.DummyLogger{}, host)
	if err != nil {
		t.Fatalf("NewApplicationWith: %v", err)
	}
	return a
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, v); err != nil {
			t.Fatalf("decode %s: %v (%s)", url, err, body)
		}
	}
	return resp.StatusCode
}

// ─── Construction ──────────────────────────────────────────────────────

func TestNewApplicationWith_Validation(t *testing.T) {
	t.Parallel()
	logger := &testutil.DummyLogger{}
	host := testutil.NewFakeHost()

	if _, err := app.NewApplicationWith(nil, logger, host); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := app.NewApplicationWith(testConfig(t), nil, host); err == nil {
		t.Error("expected error for nil logger")
	}
	if _, err := app.NewApplicationWith(testConfig(t), logger, nil); err == nil {
		t.Error("expected error for nil driver")
	}

	bad := testConfig(t)
	bad.Store.Driver = "redis"
	if _, err := app.NewApplicationWith(bad, logger, host); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestNewApplication_BuildsChromeDriver(t *testing.T) {
	t.Parallel()
	cfg := app.DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	cfg.Store.Driver = store.DriverMemory

	a, err := app.NewApplication(cfg, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	if _, ok := a.Browser.(*browser.Chrome); !ok {
		t.Errorf("Browser = %T, want *browser.Chrome", a.Browser)
	}
	// never started; shutdown only releases components
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────────

func TestApplication_StartAttachesAndServes(t *testing.T) {
	t.Parallel()
	host := testutil.NewFakeHost(
		browser.Tab{ID: "T1", URL: chatURL},
		browser.Tab{ID: "T2", URL: "https://example.com/"},
	)
	a := newTestApp(t, host)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Shutdown(context.Background())

	if !host.Started() {
		t.Error("browser not started")
	}
	if !host.IsAttached("T1") {
		t.Error("open target tab not attached on start")
	}
	if host.IsAttached("T2") {
		t.Error("non-target tab attached")
	}

	base := "http://" + a.Addr()
	var health struct {
		Status      string `json:"status"`
		TrackedTabs int    `json:"tracked_tabs"`
	}
	if code := getJSON(t, base+"/healthz", &health); code != http.StatusOK {
		t.Fatalf("healthz status %d", code)
	}
	if health.Status != "ok" || health.TrackedTabs != 1 {
		t.Errorf("health = %+v", health)
	}

	if code := getJSON(t, base+"/latest", nil); code != http.StatusNotFound {
		t.Errorf("latest before capture: %d", code)
	}

	host.SetBody("R1", []byte(`{"reply":"hi"}`))
	host.Emit(browser.Event{Kind: browser.EventRequestSent, TabID: "T1", RequestID: "R1", URL: endpointURL, Method: "POST", PostData: `{"prompt":"hello"}`})
	host.Emit(browser.Event{Kind: browser.EventLoadingFinished, TabID: "T1", RequestID: "R1"})
	a.Capture.Wait()

	var snap model.Snapshot
	if code := getJSON(t, base+"/latest", &snap); code != http.StatusOK {
		t.Fatalf("latest after capture: %d", code)
	}
	if string(snap.Request.Payload) != `{"prompt":"hello"}` || string(snap.Response.Body) != `{"reply":"hi"}` {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestApplication_StartTwice_ReturnsError(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testutil.NewFakeHost())
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Shutdown(context.Background())

	if err := a.Start(context.Background()); err == nil {
		t.Fatal("expected error on second Start")
	}
}

func TestApplication_StartBrowserFailure_ReleasesListener(t *testing.T) {
	t.Parallel()
	host := testutil.NewFakeHost()
	host.StartErr = errors.New("no browser")
	a := newTestApp(t, host)

	err := a.Run(context.Background())
	if err == nil || !errors.Is(err, host.StartErr) {
		t.Fatalf("Run() = %v, want start error", err)
	}
	if !host.Closed() {
		t.Error("driver not closed after failed start")
	}
}

func TestApplication_Shutdown_Idempotent(t *testing.T) {
	t.Parallel()
	host := testutil.NewFakeHost()
	a := newTestApp(t, host)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := a.Addr()

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if !host.Closed() {
		t.Error("driver not closed")
	}
	if _, err := http.Get("http://" + addr + "/healthz"); err == nil {
		t.Error("API still reachable after shutdown")
	}
}

func TestApplication_Run_StopsOnCancel(t *testing.T) {
	t.Parallel()
	host := testutil.NewFakeHost()
	a := newTestApp(t, host)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for a.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !host.Closed() {
		t.Error("driver not closed")
	}
}
