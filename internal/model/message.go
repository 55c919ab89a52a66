package model

import (
	"encoding/json"
	"fmt"
)

type MessageType string

const (
	MessageDataUpdated          MessageType = "DATA_UPDATED"
	MessageRequestDebuggerCheck MessageType = "REQUEST_DEBUGGER_CHECK"
	MessageDebuggerCheckResult  MessageType = "DEBUGGER_CHECK_RESULT"
	MessageConversationResponse MessageType = "conversation-response"
	MessageGetLatest            MessageType = "get-latest"
	MessageLatest               MessageType = "latest"
	MessageError                MessageType = "error"
)

// Message is the envelope exchanged between the daemon and popups.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DebuggerCheckRequest is the payload of REQUEST_DEBUGGER_CHECK.
type DebuggerCheckRequest struct {
	TabID  string `json:"tab_id"`
	TabURL string `json:"tab_url"`
}

// DebuggerCheckResult is the payload of DEBUGGER_CHECK_RESULT.
type DebuggerCheckResult struct {
	Status string `json:"status"`
}

// ConversationResponse is the payload of a forwarded capture.
type ConversationResponse struct {
	TabID    string          `json:"tab_id,omitempty"`
	URL      string          `json:"url"`
	Method   string          `json:"method,omitempty"`
	Request  json.RawMessage `json:"request,omitempty"`
	Response json.RawMessage `json:"response"`
}

// ErrorPayload is the payload of an error reply.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage marshals payload into a Message of the given type.
func NewMessage(t MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: b}, nil
}

// ErrorMessage builds an error reply.
func ErrorMessage(err error) Message {
	b, _ := json.Marshal(ErrorPayload{Error: err.Error()})
	return Message{Type: MessageError, Payload: b}
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}
