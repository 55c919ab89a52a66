package demoserver_test

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/convotap/internal/demoserver"
	"github.com/raysh454/convotap/internal/testutil"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := demoserver.DefaultConfig()
	cfg.ChunkDelay = 0
	ts := httptest.NewServer(demoserver.NewDemoServer(cfg, &testutil.DummyLogger{}))
	t.Cleanup(ts.Close)
	return ts
}

func promptBody(conversationID, prompt string) string {
	req := demoserver.ConversationRequest{
		Action:         "next",
		ConversationID: conversationID,
		Model:          "demo",
		Messages: []demoserver.Message{{
			ID:      "m1",
			Author:  demoserver.Author{Role: "user"},
			Content: demoserver.Content{ContentType: "text", Parts: []string{prompt}},
		}},
	}
	b, _ := json.Marshal(req)
	return string(b)
}

func TestIndex_ServesChatPage(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/c/conv-42")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if got := doc.Find("#conversation").Text(); got != "conv-42" {
		t.Errorf("conversation id = %q", got)
	}
	if doc.Find("form#prompt-form input#prompt").Length() != 1 {
		t.Error("prompt input missing")
	}
	if doc.Find("input#stream[type=checkbox]").Length() != 1 {
		t.Error("stream toggle missing")
	}
	if got := doc.Find("form#prompt-form").AttrOr("data-endpoint", ""); got != demoserver.EndpointPath {
		t.Errorf("form posts to %q, want %q", got, demoserver.EndpointPath)
	}
	if !strings.Contains(doc.Find("script").Text(), "form.dataset.endpoint") {
		t.Error("page script does not read the form endpoint")
	}
}

func TestConversation_JSONReply(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	for turn := 1; turn <= 2; turn++ {
		resp, err := http.Post(ts.URL+demoserver.EndpointPath, "application/json", strings.NewReader(promptBody("c1", "hello")))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		var reply demoserver.ConversationReply
		err = json.NewDecoder(resp.Body).Decode(&reply)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if reply.ConversationID != "c1" || reply.Message.Author.Role != "assistant" {
			t.Errorf("unexpected reply %+v", reply)
		}
		want := "Reply " + string(rune('0'+turn)) + `: you said "hello".`
		if got := reply.Message.Content.Parts[0]; got != want {
			t.Errorf("turn %d text = %q, want %q", turn, got, want)
		}
	}
}

func TestConversation_StreamReply(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+demoserver.EndpointPath+"?stream=1", "application/json", strings.NewReader(promptBody("c2", "hi there")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}

	var events []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			events = append(events, data)
		}
	}
	if len(events) < 2 || events[len(events)-1] != "[DONE]" {
		t.Fatalf("events = %v", events)
	}
	var last demoserver.ConversationReply
	if err := json.Unmarshal([]byte(events[len(events)-2]), &last); err != nil {
		t.Fatalf("decode last event: %v", err)
	}
	if last.Message.Status != "finished_successfully" || last.Message.Content.Parts[0] != `Reply 1: you said "hi there".` {
		t.Errorf("last event = %+v", last)
	}
}

func TestConversation_BadRequests(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	for name, body := range map[string]string{
		"invalid json": "{",
		"no user msg":  `{"messages":[{"author":{"role":"assistant"},"content":{"parts":["x"]}}]}`,
	} {
		resp, err := http.Post(ts.URL+demoserver.EndpointPath, "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("%s: POST: %v", name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d", name, resp.StatusCode)
		}
	}
}

func TestModels_SameOriginOtherEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/backend-api/models")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestConversation_AcceptEventStream(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+demoserver.EndpointPath, strings.NewReader(promptBody("c3", "yo")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasSuffix(string(body), "data: [DONE]\n\n") {
		t.Errorf("stream not terminated: %q", body)
	}
}
