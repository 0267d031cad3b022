package model

import "encoding/json"

// Command actions accepted from clients.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Message types sent to clients.
const (
	MessageState  = "state"
	MessageResult = "result"
	MessageError  = "error"
)

// Command is a client → scheduler message.
type Command struct {
	Action    string          `json:"action"`
	Params    json.RawMessage `json:"params,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// StateMessage carries the full task table.
type StateMessage struct {
	Type  string   `json:"type"`
	Tasks []Record `json:"tasks"`
}

// NewStateMessage builds a state message; a nil table encodes as [].
func NewStateMessage(records []Record) StateMessage {
	if records == nil {
		records = []Record{}
	}
	return StateMessage{Type: MessageState, Tasks: records}
}

// ReplyMessage answers one command, sent to its sender only.
type ReplyMessage struct {
	Type      string       `json:"type"`
	RequestID string       `json:"request_id,omitempty"`
	Action    string       `json:"action"`
	TaskID    string       `json:"task_id,omitempty"`
	Code      ErrorCode    `json:"code,omitempty"`
	Message   string       `json:"message,omitempty"`
	Details   []FieldError `json:"details,omitempty"`
}

// Err returns the reply as an error, or nil for a result.
func (m ReplyMessage) Err() error {
	if m.Type != MessageError {
		return nil
	}
	return &APIError{Code: m.Code, Message: m.Message, Details: m.Details}
}

// Envelope decodes any scheduler → client message.
type Envelope struct {
	Type  string   `json:"type"`
	Tasks []Record `json:"tasks,omitempty"`
	ReplyMessage
}

// UnmarshalJSON decodes the shared "type" field once for both halves.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var state struct {
		Type  string   `json:"type"`
		Tasks []Record `json:"tasks"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	e.Type = state.Type
	e.Tasks = state.Tasks
	if state.Type == MessageState {
		e.ReplyMessage = ReplyMessage{}
		return nil
	}
	return json.Unmarshal(data, &e.ReplyMessage)
}
