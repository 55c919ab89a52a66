package capture

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/raysh454/convotap/internal/model"
)

const (
	BodyUnavailable = "Response body not available"
	bodyErrorPrefix = "Error retrieving response body: "
)

var jsonNull = json.RawMessage("null")

// requestPayload keeps a JSON payload verbatim and wraps anything else as a
// JSON string. An absent payload is null.
func requestPayload(raw string) json.RawMessage {
	if raw == "" {
		return jsonNull
	}
	return textOrJSON([]byte(raw))
}

// responseBody converts a fetched body, or the error fetching it, into the
// response half of a snapshot.
func responseBody(body []byte, err error) model.CapturedResponse {
	if err != nil {
		return model.CapturedResponse{
			Body:  quote(bodyErrorPrefix + err.Error()),
			Error: err.Error(),
		}
	}
	if len(body) == 0 {
		return model.CapturedResponse{Body: quote(BodyUnavailable)}
	}
	if !utf8.Valid(body) {
		return model.CapturedResponse{
			Body:          quote(base64.StdEncoding.EncodeToString(body)),
			Base64Encoded: true,
		}
	}
	return model.CapturedResponse{Body: textOrJSON(body)}
}

// forwardedPayload and forwardedBody handle values that arrived inside a
// JSON message. A page script sends bodies as text, so a JSON string holding
// a JSON document is unwrapped to that document.
func forwardedPayload(raw json.RawMessage) json.RawMessage {
	text, ok := unwrapText(raw)
	if !ok {
		return jsonNull
	}
	return text
}

func forwardedBody(raw json.RawMessage) model.CapturedResponse {
	text, ok := unwrapText(raw)
	if !ok {
		return model.CapturedResponse{Body: quote(BodyUnavailable)}
	}
	return model.CapturedResponse{Body: text}
}

// unwrapText reports false for an absent, null or empty-string value.
func unwrapText(raw json.RawMessage) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, false
	}
	if trimmed[0] != '"' {
		return textOrJSON(trimmed), true
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return textOrJSON(trimmed), true
	}
	if s == "" {
		return nil, false
	}
	return textOrJSON([]byte(s)), true
}

func textOrJSON(b []byte) json.RawMessage {
	if json.Valid(b) {
		return append(json.RawMessage(nil), b...)
	}
	return quote(string(b))
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func newSnapshot(tabID, source string, req model.CapturedRequest, resp model.CapturedResponse, at time.Time) *model.Snapshot {
	return &model.Snapshot{
		ID:        uuid.NewString(),
		TabID:     tabID,
		Source:    source,
		Request:   req,
		Response:  resp,
		Timestamp: at.UTC(),
	}
}
