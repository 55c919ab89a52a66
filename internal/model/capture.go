package model

import (
	"encoding/json"
	"time"
)

// Capture sources.
const (
	SourceNetwork   = "network"
	SourceIntercept = "intercept"
	SourceForward   = "forward"
)

// PendingRequest is an outgoing target request waiting for its response.
type PendingRequest struct {
	TabID     string
	RequestID string
	URL       string
	Method    string
	Payload   string
	// Generation is the attachment generation of the tab when the request was seen.
	Generation uint64
	SeenAt     time.Time
}

// CapturedRequest is the request half of a snapshot. Payload holds raw JSON:
// the original document when it parsed, otherwise the text as a JSON string.
type CapturedRequest struct {
	URL     string          `json:"url"`
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload"`
}

// CapturedResponse is the response half of a snapshot.
type CapturedResponse struct {
	Body          json.RawMessage `json:"body"`
	Base64Encoded bool            `json:"base64_encoded"`
	Error         string          `json:"error,omitempty"`
}

// Snapshot is the most recently captured exchange.
type Snapshot struct {
	ID        string           `json:"id"`
	TabID     string           `json:"tab_id,omitempty"`
	Source    string           `json:"source"`
	Request   CapturedRequest  `json:"request"`
	Response  CapturedResponse `json:"response"`
	Timestamp time.Time        `json:"timestamp"`
}

// Failed reports whether the response could not be retrieved.
func (s *Snapshot) Failed() bool {
	return s != nil && s.Response.Error != ""
}

// TrackedTab is a tab with an active debugging attachment.
type TrackedTab struct {
	TabID      string    `json:"tab_id"`
	URL        string    `json:"url"`
	AttachedAt time.Time `json:"attached_at"`
}
