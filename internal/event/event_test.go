package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/recordview/internal/record"
)

type memJournal struct {
	entries []Entry
	err     error
}

func (j *memJournal) WriteEntries(_ context.Context, entries []Entry) error {
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, entries...)
	return nil
}

type memPublisher struct {
	events []DomainEvent
}

func (p *memPublisher) Publish(_ context.Context, evt DomainEvent) {
	p.events = append(p.events, evt)
}

func TestRecordsSaved_FansOutPerRecord(t *testing.T) {
	root := record.Ref{InfoArea: "FI", RecordID: "1"}
	child := record.Ref{InfoArea: "KP", RecordID: "7"}
	evt := NewRecordsSaved("s1", root, []record.Ref{child, {}}, RecordsSavedPayload{Creates: 1, Updates: 1})

	assert.Equal(t, TypeRecordsSaved, evt.EventType)
	assert.Equal(t, []record.Ref{root, child}, evt.AffectedRecords)
	assert.Contains(t, evt.Summary, "1 created")

	var p RecordsSavedPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &p))
	assert.Equal(t, 1, p.Creates)

	entries := Entries(evt)
	require.Len(t, entries, 2)
	assert.Equal(t, child, entries[1].Record)
	assert.Equal(t, evt.ID, entries[1].EventID)
}

func TestEntries_NoAffectedRecords(t *testing.T) {
	evt := NewScreenOpened("s1", record.Ref{}, ScreenOpenedPayload{Tab: "Company", Mode: "new"})
	entries := Entries(evt)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Record.IsZero())
}

func TestJournalRecorder_PublishesAfterWrite(t *testing.T) {
	j := &memJournal{}
	pub := &memPublisher{}
	r := NewJournalRecorder(j)
	r.SetPublisher(pub)

	evt := NewStateChanged("s1", record.Ref{InfoArea: "FI", RecordID: "1"},
		StateChangedPayload{ControllerID: "c", Tab: "Company", State: "finished"})
	require.NoError(t, r.Record(context.Background(), evt))
	assert.Len(t, j.entries, 1)
	assert.Len(t, pub.events, 1)
	assert.Equal(t, "info", evt.Weight)

	j.err = errors.New("disk full")
	assert.Error(t, r.Record(context.Background(), evt))
	assert.Len(t, pub.events, 1, "failed writes are not published")
}

func TestStateChanged_ErrorIsMajor(t *testing.T) {
	evt := NewStateChanged("s1", record.Ref{}, StateChangedPayload{Tab: "X", State: "error", Error: "boom"})
	assert.Equal(t, "major", evt.Weight)
}
