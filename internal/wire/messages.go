// Package wire serves screens to clients over WebSocket. Each connection
// owns a session holding at most one open screen.
package wire

import (
	"encoding/json"

	"github.com/matthewbaird/recordview/internal/edit"
	"github.com/matthewbaird/recordview/internal/record"
)

// ── Client → Server messages ────────────────────────────────────────────────

// ClientMessage is the envelope for all client-to-server WebSocket messages.
type ClientMessage struct {
	Type string          `json:"type"` // "open", "set_value", "set_field", "insert_child", "delete_child", "set_child_field", "validate", "save", "ping"
	ID   string          `json:"id"`   // Client-assigned request ID
	Data json.RawMessage `json:"data,omitempty"`
}

// OpenData is the payload for "open" messages. A screen is bound to
// Record when set, to Values otherwise.
type OpenData struct {
	Tab    string            `json:"tab"`
	Mode   string            `json:"mode,omitempty"` // "view", "new" or "update"
	Record *record.Ref       `json:"record,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// SetValueData is the payload for "set_value" messages.
type SetValueData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SetFieldData is the payload for "set_field" messages.
type SetFieldData struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// ChildData is the payload for the child-set messages.
type ChildData struct {
	Tab     string            `json:"tab"`
	ChildID string            `json:"child_id,omitempty"`
	Field   string            `json:"field,omitempty"`
	Value   string            `json:"value,omitempty"`
	Values  map[string]string `json:"values,omitempty"`
}

// ── Server → Client messages ────────────────────────────────────────────────

// ServerMessage is the envelope for all server-to-client WebSocket messages.
type ServerMessage struct {
	Type      string `json:"type"`                 // "session", "ack", "state", "group", "value", "navigate", "violations", "saved", "error", "pong"
	RequestID string `json:"request_id,omitempty"` // Echoes client ID
	Data      any    `json:"data,omitempty"`
}

// SessionData carries session information.
type SessionData struct {
	SessionID string `json:"session_id"`
}

// AckData confirms a command.
type AckData struct {
	ScreenID  string `json:"screen_id,omitempty"`
	Reapplied int    `json:"reapplied,omitempty"`
	Changed   bool   `json:"changed,omitempty"`
	ChildID   string `json:"child_id,omitempty"`
}

// StateData reports a settled screen.
type StateData struct {
	ScreenID string `json:"screen_id"`
	Tab      string `json:"tab"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

// GroupData carries the presentation tree of a screen, encoded on the
// thread that owns it.
type GroupData struct {
	ScreenID string          `json:"screen_id"`
	Group    json.RawMessage `json:"group"`
}

// ValueData reports a named value raised by the screen.
type ValueData struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NavigateData asks the client to open another screen.
type NavigateData struct {
	Target string            `json:"target"`
	Record record.Ref        `json:"record"`
	Values map[string]string `json:"values,omitempty"`
}

// ViolationsData carries validation results.
type ViolationsData struct {
	Violations []edit.Violation `json:"violations"`
}

// SavedData reports a completed save.
type SavedData struct {
	Refs      []record.Ref `json:"refs,omitempty"`
	Offline   bool         `json:"offline"`
	RequestID string       `json:"offline_request_id,omitempty"`
}

// ErrorData carries an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
