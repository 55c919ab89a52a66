package server

// HealthResponse reports daemon liveness and capture state.
type HealthResponse struct {
	Status          string `json:"status" example:"ok"`
	TrackedTabs     int    `json:"tracked_tabs" example:"1"`
	PendingRequests int    `json:"pending_requests" example:"0"`
}

// DebuggerCheckRequest asks the daemon to re-check the attachment of a tab.
// An empty tab_id means the active tab.
type DebuggerCheckRequest struct {
	TabID  string `json:"tab_id" example:"8F1A0C2D9E3B4A5C6D7E8F9A0B1C2D3E"`
	TabURL string `json:"tab_url" example:"https://chatgpt.com/c/abc"`
}

// DebuggerCheckResponse carries the human-readable outcome of a re-check.
type DebuggerCheckResponse struct {
	Status string `json:"status" example:"Debugger attached to tab 8F1A0C2D9E3B4A5C6D7E8F9A0B1C2D3E."`
}

// MessageEnvelope is a typed message exchanged with popups.
type MessageEnvelope struct {
	Type    string `json:"type" example:"get-latest"`
	Payload any    `json:"payload,omitempty" swaggertype:"object"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"no snapshot captured yet"`
}
