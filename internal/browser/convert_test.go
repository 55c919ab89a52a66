package browser

import (
	"encoding/base64"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
)

func TestPostData(t *testing.T) {
	t.Parallel()

	enc := func(s string) *network.PostDataEntry {
		return &network.PostDataEntry{Bytes: base64.StdEncoding.EncodeToString([]byte(s))}
	}

	tests := []struct {
		name string
		req  *network.Request
		want string
	}{
		{"nil request", nil, ""},
		{"no entries", &network.Request{}, ""},
		{"single entry", &network.Request{PostDataEntries: []*network.PostDataEntry{enc(`{"a":1}`)}}, `{"a":1}`},
		{"split entries", &network.Request{PostDataEntries: []*network.PostDataEntry{enc(`{"a":`), nil, enc(`1}`)}}, `{"a":1}`},
		{"undecodable kept", &network.Request{PostDataEntries: []*network.PostDataEntry{{Bytes: "not base64!"}}}, "not base64!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := postData(tt.req); got != tt.want {
				t.Errorf("postData() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTabFromInfo(t *testing.T) {
	t.Parallel()

	if _, ok := tabFromInfo(nil); ok {
		t.Error("nil info should not be a tab")
	}
	if _, ok := tabFromInfo(&target.Info{TargetID: "w1", Type: "service_worker"}); ok {
		t.Error("service worker should not be a tab")
	}
	tab, ok := tabFromInfo(&target.Info{TargetID: "t1", Type: "page", URL: "https://chat.example.com/", Title: "Chat"})
	if !ok {
		t.Fatal("page target should be a tab")
	}
	if tab.ID != "t1" || tab.URL != "https://chat.example.com/" || tab.Title != "Chat" {
		t.Errorf("unexpected tab: %+v", tab)
	}
}
