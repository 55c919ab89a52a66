package popup

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/pretty"

	"github.com/raysh454/convotap/internal/model"
)

var prettyOptions = &pretty.Options{Width: 80, Prefix: "", Indent: "  ", SortKeys: false}

// RenderPayload renders a request payload: JSON documents are pretty-printed
// in source key order, text is shown unchanged.
func RenderPayload(payload json.RawMessage) string {
	if len(bytes.TrimSpace(payload)) == 0 {
		return "null"
	}
	return renderValue(payload)
}

// RenderResponse renders a response body. A text body that itself holds a
// JSON document is pretty-printed; any other text is shown unchanged.
func RenderResponse(resp model.CapturedResponse) string {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return ""
	}
	return renderValue(resp.Body)
}

func renderValue(raw json.RawMessage) string {
	if !json.Valid(raw) {
		return string(raw)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if trimmed := strings.TrimSpace(text); trimmed != "" && json.Valid([]byte(trimmed)) {
			return prettyJSON([]byte(trimmed))
		}
		return text
	}
	return prettyJSON(raw)
}

// prettyJSON indents containers. pretty yields nothing for a bare null, so
// scalars are returned as they are.
func prettyJSON(b []byte) string {
	b = bytes.TrimSpace(b)
	if !isContainer(string(b)) {
		return string(b)
	}
	return strings.TrimRight(string(pretty.PrettyOptions(b, prettyOptions)), "\n")
}

func isContainer(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// looksLikeJSON reports whether rendered text should be highlighted as JSON.
func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return isContainer(s) && json.Valid([]byte(s))
}
