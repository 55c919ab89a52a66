package browser_test

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeCDP speaks enough of the DevTools protocol for chromedp to connect,
// attach to page targets and run commands on flattened sessions.
type fakeCDP struct {
	t   *testing.T
	srv *httptest.Server

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu       sync.Mutex
	methods  []string
	sessions map[string]string // session id -> target id
	bodies   map[string]string // request id -> response body
	nextID   int
}

func newFakeCDP(t *testing.T) *fakeCDP {
	t.Helper()
	f := &fakeCDP{
		t:        t,
		sessions: make(map[string]string),
		bodies:   make(map[string]string),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

// URL is a browser-level websocket endpoint, so chromedp dials it directly.
func (f *fakeCDP) URL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/devtools/browser/fake"
}

func (f *fakeCDP) SetBody(requestID, body string) {
	f.mu.Lock()
	f.bodies[requestID] = body
	f.mu.Unlock()
}

// Session returns the live session id attached to targetID.
func (f *fakeCDP) Session(targetID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sid, tid := range f.sessions {
		if tid == targetID {
			return sid
		}
	}
	return ""
}

func (f *fakeCDP) Called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.methods {
		if m == method {
			n++
		}
	}
	return n
}

// Emit sends an event. An empty sessionID sends a browser-level event.
func (f *fakeCDP) Emit(sessionID, method string, params any) {
	f.t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		f.t.Fatalf("marshal %s params: %v", method, err)
	}
	msg := map[string]any{"method": method, "params": json.RawMessage(raw)}
	if sessionID != "" {
		msg["sessionId"] = sessionID
	}
	f.write(msg)
}

func (f *fakeCDP) write(msg map[string]any) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if f.conn == nil {
		return
	}
	_ = f.conn.WriteJSON(msg)
}

type cdpCommand struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
}

func (f *fakeCDP) serve(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	f.writeMu.Lock()
	f.conn = conn
	f.writeMu.Unlock()

	for {
		var cmd cdpCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		f.mu.Lock()
		f.methods = append(f.methods, cmd.Method)
		f.mu.Unlock()

		result, cdpErr, after := f.handle(cmd)
		reply := map[string]any{"id": cmd.ID}
		if cmd.SessionID != "" {
			reply["sessionId"] = cmd.SessionID
		}
		if cdpErr != "" {
			reply["error"] = map[string]any{"code": -32000, "message": cdpErr}
		} else {
			reply["result"] = result
		}
		f.write(reply)
		if after != nil {
			after()
		}
	}
}

func (f *fakeCDP) handle(cmd cdpCommand) (result any, cdpErr string, after func()) {
	var params map[string]any
	_ = json.Unmarshal(cmd.Params, &params)

	switch cmd.Method {
	case "Target.getTargets":
		return map[string]any{"targetInfos": []any{
			targetInfo("T1", "page", "https://chat.example.com/c/1"),
			targetInfo("W1", "service_worker", "https://chat.example.com/sw.js"),
		}}, "", nil
	case "Target.attachToTarget":
		targetID, _ := params["targetId"].(string)
		f.mu.Lock()
		f.nextID++
		sid := fmt.Sprintf("S%d-%s", f.nextID, targetID)
		f.sessions[sid] = targetID
		f.mu.Unlock()
		return map[string]any{"sessionId": sid}, "", nil
	case "Target.detachFromTarget":
		sid, _ := params["sessionId"].(string)
		f.mu.Lock()
		targetID, ok := f.sessions[sid]
		delete(f.sessions, sid)
		f.mu.Unlock()
		if !ok {
			return nil, "No session with given id", nil
		}
		return map[string]any{}, "", func() {
			f.Emit("", "Target.detachedFromTarget", map[string]any{"sessionId": sid, "targetId": targetID})
		}
	case "Runtime.evaluate":
		return map[string]any{"result": map[string]any{"type": "object", "className": "Window"}}, "", nil
	case "Page.getFrameTree":
		return map[string]any{"frameTree": map[string]any{"frame": map[string]any{
			"id":             "F1",
			"loaderId":       "L1",
			"url":            "https://chat.example.com/c/1",
			"securityOrigin": "https://chat.example.com",
			"mimeType":       "text/html",
		}}}, "", nil
	case "DOM.getDocument":
		return map[string]any{"root": map[string]any{
			"nodeId":        1,
			"backendNodeId": 1,
			"nodeType":      9,
			"nodeName":      "#document",
			"localName":     "",
			"nodeValue":     "",
		}}, "", nil
	case "Network.getResponseBody", "Fetch.getResponseBody":
		requestID, _ := params["requestId"].(string)
		f.mu.Lock()
		body, ok := f.bodies[requestID]
		f.mu.Unlock()
		if !ok {
			return nil, "No resource with given identifier found", nil
		}
		return map[string]any{
			"body":          base64.StdEncoding.EncodeToString([]byte(body)),
			"base64Encoded": true,
		}, "", nil
	}
	return map[string]any{}, "", nil
}

func targetInfo(id, kind, url string) map[string]any {
	return map[string]any{
		"targetId":         id,
		"type":             kind,
		"title":            "",
		"url":              url,
		"attached":         false,
		"canAccessOpener":  false,
		"browserContextId": "B1",
	}
}

func conversationRequest(url, body string) map[string]any {
	return map[string]any{
		"url":     url,
		"method":  "POST",
		"headers": map[string]any{"Content-Type": "application/json"},
		"postDataEntries": []any{
			map[string]any{"bytes": base64.StdEncoding.EncodeToString([]byte(body))},
		},
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
