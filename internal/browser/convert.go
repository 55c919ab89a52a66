package browser

import (
	"encoding/base64"
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
)

// postData joins the request body entries. Entries arrive base64 encoded;
// an entry that fails to decode is kept as is.
func postData(req *network.Request) string {
	if req == nil || len(req.PostDataEntries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, entry := range req.PostDataEntries {
		if entry == nil {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(entry.Bytes)
		if err != nil {
			b.WriteString(entry.Bytes)
			continue
		}
		b.Write(raw)
	}
	return b.String()
}

// tabFromInfo keeps page targets only.
func tabFromInfo(info *target.Info) (Tab, bool) {
	if info == nil || info.Type != "page" {
		return Tab{}, false
	}
	return Tab{ID: string(info.TargetID), URL: info.URL, Title: info.Title}, true
}
