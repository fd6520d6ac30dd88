package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/recordview/internal/record"
)

// Event types.
const (
	TypeStateChanged  = "controller_state_changed"
	TypeValueChanged  = "value_changed"
	TypeNavigation    = "navigation_requested"
	TypeRecordsSaved  = "records_saved"
	TypeSaveRejected  = "save_rejected"
	TypeOfflineQueued = "offline_request_queued"
	TypeScreenOpened  = "screen_opened"
)

// DomainEvent carries the canonical shape of every event raised by screens
// and their controllers.
type DomainEvent struct {
	ID              string
	EventType       string
	OccurredAt      time.Time
	ScreenID        string
	AffectedRecords []record.Ref
	Summary         string
	Category        string // "controller", "screen", "persist"
	Weight          string // "major", "minor", "info"
	Payload         json.RawMessage
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func refs(rs ...record.Ref) []record.Ref {
	out := make([]record.Ref, 0, len(rs))
	for _, r := range rs {
		if !r.IsZero() {
			out = append(out, r)
		}
	}
	return out
}

// StateChangedPayload carries the settled state of one controller.
type StateChangedPayload struct {
	ControllerID string `json:"controller_id"`
	Tab          string `json:"tab"`
	State        string `json:"state"`
	Error        string `json:"error,omitempty"`
}

func NewStateChanged(screenID string, rec record.Ref, p StateChangedPayload) DomainEvent {
	weight := "info"
	if p.Error != "" {
		weight = "major"
	}
	return DomainEvent{
		ID:              newID(),
		EventType:       TypeStateChanged,
		OccurredAt:      time.Now(),
		ScreenID:        screenID,
		AffectedRecords: refs(rec),
		Summary:         fmt.Sprintf("%s settled as %s", p.Tab, p.State),
		Category:        "controller",
		Weight:          weight,
		Payload:         mustJSON(p),
	}
}

// ValueChangedPayload carries a must-field signal or an every-change signal.
type ValueChangedPayload struct {
	Field     string `json:"field"`
	AllFilled bool   `json:"all_filled"`
}

func NewValueChanged(screenID string, rec record.Ref, p ValueChangedPayload) DomainEvent {
	return DomainEvent{
		ID:              newID(),
		EventType:       TypeValueChanged,
		OccurredAt:      time.Now(),
		ScreenID:        screenID,
		AffectedRecords: refs(rec),
		Summary:         fmt.Sprintf("value of %s changed", p.Field),
		Category:        "controller",
		Weight:          "info",
		Payload:         mustJSON(p),
	}
}

// NavigationPayload names the requested destination.
type NavigationPayload struct {
	Target string            `json:"target"`
	Values map[string]string `json:"values,omitempty"`
}

func NewNavigation(screenID string, rec record.Ref, p NavigationPayload) DomainEvent {
	return DomainEvent{
		ID:              newID(),
		EventType:       TypeNavigation,
		OccurredAt:      time.Now(),
		ScreenID:        screenID,
		AffectedRecords: refs(rec),
		Summary:         "navigate to " + p.Target,
		Category:        "screen",
		Weight:          "info",
		Payload:         mustJSON(p),
	}
}

// RecordsSavedPayload summarises one applied save.
type RecordsSavedPayload struct {
	Creates int  `json:"creates"`
	Updates int  `json:"updates"`
	Deletes int  `json:"deletes"`
	Offline bool `json:"offline"`
}

func NewRecordsSaved(screenID string, root record.Ref, affected []record.Ref, p RecordsSavedPayload) DomainEvent {
	where := "online"
	if p.Offline {
		where = "offline"
	}
	summary := fmt.Sprintf("saved %s (%s): %d created, %d updated, %d deleted",
		root, where, p.Creates, p.Updates, p.Deletes)
	return DomainEvent{
		ID:              newID(),
		EventType:       TypeRecordsSaved,
		OccurredAt:      time.Now(),
		ScreenID:        screenID,
		AffectedRecords: refs(append([]record.Ref{root}, affected...)...),
		Summary:         summary,
		Category:        "persist",
		Weight:          "major",
		Payload:         mustJSON(p),
	}
}

// SaveRejectedPayload lists why a save did not reach the store.
type SaveRejectedPayload struct {
	Reason     string   `json:"reason"`
	Violations []string `json:"violations,omitempty"`
}

func NewSaveRejected(screenID string, root record.Ref, p SaveRejectedPayload) DomainEvent {
	return DomainEvent{
		ID:              newID(),
		EventType:       TypeSaveRejected,
		OccurredAt:      time.Now(),
		ScreenID:        screenID,
		AffectedRecords: refs(root),
		Summary:         fmt.Sprintf("save of %s rejected: %s", root, p.Reason),
		Category:        "persist",
		Weight:          "major",
		Payload:         mustJSON(p),
	}
}

// OfflineQueuedPayload describes operations parked for later upload.
type OfflineQueuedPayload struct {
	RequestID  string `json:"request_id"`
	Operations int    `json:"operations"`
}

func NewOfflineQueued(screenID string, root record.Ref, p OfflineQueuedPayload) DomainEvent {
	return DomainEvent{
		ID:              newID(),
		EventType:       TypeOfflineQueued,
		OccurredAt:      time.Now(),
		ScreenID:        screenID,
		AffectedRecords: refs(root),
		Summary:         fmt.Sprintf("queued %d operations for %s", p.Operations, root),
		Category:        "persist",
		Weight:          "minor",
		Payload:         mustJSON(p),
	}
}

// ScreenOpenedPayload names the root tab and the mode a screen opened in.
type ScreenOpenedPayload struct {
	Tab  string `json:"tab"`
	Mode string `json:"mode"`
}

func NewScreenOpened(screenID string, rec record.Ref, p ScreenOpenedPayload) DomainEvent {
	return DomainEvent{
		ID:              newID(),
		EventType:       TypeScreenOpened,
		OccurredAt:      time.Now(),
		ScreenID:        screenID,
		AffectedRecords: refs(rec),
		Summary:         fmt.Sprintf("opened %s in %s mode", p.Tab, p.Mode),
		Category:        "screen",
		Weight:          "info",
		Payload:         mustJSON(p),
	}
}
