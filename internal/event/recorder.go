// Package event provides domain event recording for screens.
// Events are fanned out as journal entries via the Journal interface,
// then published to the in-process event bus for downstream consumers.
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matthewbaird/recordview/internal/record"
)

// Entry is one journal row: an event indexed under one affected record.
// Events without affected records produce a single entry with a zero ref.
type Entry struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	ScreenID   string          `json:"screen_id"`
	Record     record.Ref      `json:"record"`
	Summary    string          `json:"summary"`
	Category   string          `json:"category"`
	Weight     string          `json:"weight"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Journal stores entries.
type Journal interface {
	WriteEntries(ctx context.Context, entries []Entry) error
}

// Recorder writes domain events.
type Recorder interface {
	Record(ctx context.Context, evt DomainEvent) error
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

// JournalRecorder implements Recorder by fanning out a DomainEvent into
// one Entry per affected record, then writing via Journal. If a Publisher
// is set, the event is also published after the write succeeds.
type JournalRecorder struct {
	journal Journal
	bus     Publisher
}

// NewJournalRecorder creates a recorder backed by journal. A nil journal
// only publishes.
func NewJournalRecorder(journal Journal) *JournalRecorder {
	return &JournalRecorder{journal: journal}
}

// SetPublisher attaches an event bus.
func (r *JournalRecorder) SetPublisher(p Publisher) {
	r.bus = p
}

// Record writes the fanned-out entries and publishes the event.
func (r *JournalRecorder) Record(ctx context.Context, evt DomainEvent) error {
	if r.journal != nil {
		if err := r.journal.WriteEntries(ctx, Entries(evt)); err != nil {
			return err
		}
	}
	if r.bus != nil {
		r.bus.Publish(ctx, evt)
	}
	return nil
}

// Entries fans out evt into journal entries.
func Entries(evt DomainEvent) []Entry {
	targets := evt.AffectedRecords
	if len(targets) == 0 {
		targets = []record.Ref{{}}
	}
	entries := make([]Entry, 0, len(targets))
	for _, ref := range targets {
		entries = append(entries, Entry{
			EventID:    evt.ID,
			EventType:  evt.EventType,
			OccurredAt: evt.OccurredAt,
			ScreenID:   evt.ScreenID,
			Record:     ref,
			Summary:    evt.Summary,
			Category:   evt.Category,
			Weight:     evt.Weight,
			Payload:    evt.Payload,
		})
	}
	return entries
}

// Discard is a Recorder that drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, DomainEvent) error { return nil }
