package eventbus

import (
	"context"
	"log"
	"time"

	"github.com/matthewbaird/recordview/internal/event"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/signals"
)

// maxRecentEntries bounds the per-record history kept for rule evaluation.
const maxRecentEntries = 200

// SignalConsumer keeps a short history of journal entries per record and
// evaluates the escalation rules against it after every event. A rule is
// logged once when it starts firing for a record and re-armed when it
// stops. It runs on the bus thread and needs no locking.
type SignalConsumer struct {
	rules  []signals.Rule
	now    func() time.Time
	recent map[record.Ref][]event.Entry
	active map[record.Ref]map[string]signals.Escalation
}

// NewSignalConsumer creates a consumer for rules.
func NewSignalConsumer(rules []signals.Rule) *SignalConsumer {
	return &SignalConsumer{
		rules:  rules,
		now:    time.Now,
		recent: map[record.Ref][]event.Entry{},
		active: map[record.Ref]map[string]signals.Escalation{},
	}
}

// HandleEvent records evt under each affected record and re-evaluates them.
func (c *SignalConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	now := c.now()
	for _, e := range event.Entries(evt) {
		if e.Record.IsZero() {
			continue
		}
		c.recent[e.Record] = c.trim(append(c.recent[e.Record], e), now)
		c.evaluate(e.Record, now)
	}
	return nil
}

// Escalations returns the rules currently firing for ref.
func (c *SignalConsumer) Escalations(ref record.Ref) []signals.Escalation {
	out := make([]signals.Escalation, 0, len(c.active[ref]))
	for _, es := range c.active[ref] {
		out = append(out, es)
	}
	return out
}

func (c *SignalConsumer) evaluate(ref record.Ref, now time.Time) {
	firing := map[string]signals.Escalation{}
	for _, es := range signals.Evaluate(c.recent[ref], c.rules, now) {
		firing[es.Rule.ID] = es
		if _, seen := c.active[ref][es.Rule.ID]; !seen {
			log.Printf("signal: %s escalated on %s (%s, %d events): %s",
				es.Rule.ID, ref, es.Rule.Severity, es.TriggeringCount, es.Rule.Description)
		}
	}
	if len(firing) == 0 {
		delete(c.active, ref)
		return
	}
	c.active[ref] = firing
}

// trim drops entries older than the widest rule window and caps the rest.
func (c *SignalConsumer) trim(entries []event.Entry, now time.Time) []event.Entry {
	var widest time.Duration
	for _, r := range c.rules {
		if r.Within > widest {
			widest = r.Within
		}
	}
	cutoff := now.Add(-widest)
	kept := entries[:0]
	for _, e := range entries {
		if !e.OccurredAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	if len(kept) > maxRecentEntries {
		kept = kept[len(kept)-maxRecentEntries:]
	}
	return kept
}
