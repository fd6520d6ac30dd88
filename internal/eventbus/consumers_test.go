package eventbus

import (
	"bytes"
	"context"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/recordview/internal/event"
	"github.com/matthewbaird/recordview/internal/record"
	"github.com/matthewbaird/recordview/internal/signals"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, flags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prev)
		log.SetFlags(flags)
	})
	return &buf
}

func TestLogConsumer_FiltersByWeight(t *testing.T) {
	buf := captureLog(t)
	ref := record.Ref{InfoArea: "FI", RecordID: "1"}
	ctx := context.Background()

	c := NewLogConsumer("major")
	require.NoError(t, c.HandleEvent(ctx, event.NewScreenOpened("s1", ref, event.ScreenOpenedPayload{Tab: "CompanyDetail", Mode: "view"})))
	assert.Empty(t, buf.String())

	require.NoError(t, c.HandleEvent(ctx, event.NewSaveRejected("s1", ref, event.SaveRejectedPayload{Reason: "validation"})))
	assert.Contains(t, buf.String(), "event: save_rejected [persist/major] screen=s1")
	assert.Contains(t, buf.String(), "records=[FI.1]")

	buf.Reset()
	require.NoError(t, NewLogConsumer("").HandleEvent(ctx, event.NewScreenOpened("s2", ref, event.ScreenOpenedPayload{Tab: "CompanyDetail"})))
	assert.Contains(t, buf.String(), "screen_opened")
}

func TestSignalConsumer_EscalatesOnceAndRearms(t *testing.T) {
	buf := captureLog(t)
	ref := record.Ref{InfoArea: "MA", RecordID: "7"}
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	c := NewSignalConsumer(signals.DefaultRules)
	c.now = func() time.Time { return now }

	reject := func() {
		evt := event.NewSaveRejected("s1", ref, event.SaveRejectedPayload{Reason: "remote refused"})
		evt.OccurredAt = now
		require.NoError(t, c.HandleEvent(ctx, evt))
	}

	reject()
	reject()
	assert.Empty(t, c.Escalations(ref))

	reject()
	got := c.Escalations(ref)
	require.Len(t, got, 1)
	assert.Equal(t, "repeated_save_rejections", got[0].Rule.ID)
	assert.Equal(t, 3, got[0].TriggeringCount)

	reject()
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("signal: repeated_save_rejections escalated on MA.7")))

	now = now.Add(25 * time.Hour)
	opened := event.NewScreenOpened("s2", ref, event.ScreenOpenedPayload{Tab: "AppointmentDetail"})
	opened.OccurredAt = now
	require.NoError(t, c.HandleEvent(ctx, opened))
	assert.Empty(t, c.Escalations(ref))
	assert.Len(t, c.recent[ref], 1, "entries outside every window are dropped")
}

func TestSignalConsumer_IgnoresEventsWithoutRecords(t *testing.T) {
	c := NewSignalConsumer(signals.DefaultRules)
	require.NoError(t, c.HandleEvent(context.Background(), event.NewSaveRejected("s1", record.Ref{}, event.SaveRejectedPayload{Reason: "x"})))
	assert.Empty(t, c.recent)
}
