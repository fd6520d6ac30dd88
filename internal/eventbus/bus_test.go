package eventbus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/recordview/internal/event"
)

func TestBus_RunPendingFIFO(t *testing.T) {
	b := New()
	var order []int
	b.Post(func() { order = append(order, 1) })
	b.Post(func() {
		order = append(order, 2)
		b.Post(func() { order = append(order, 4) })
	})
	b.Post(func() { order = append(order, 3) })

	assert.Equal(t, 3, b.Pending())
	assert.Equal(t, 4, b.RunPending())
	assert.Equal(t, []int{1, 2, 3, 4}, order)
	assert.Equal(t, 0, b.RunPending())
}

func TestBus_PublishDispatchesOnThread(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe("first", HandlerFunc(func(_ context.Context, evt event.DomainEvent) error {
		got = append(got, "first:"+evt.EventType)
		return errors.New("ignored")
	}))
	b.Subscribe("second", HandlerFunc(func(_ context.Context, evt event.DomainEvent) error {
		got = append(got, "second:"+evt.EventType)
		assert.NotEmpty(t, evt.ID)
		assert.False(t, evt.OccurredAt.IsZero())
		return nil
	}))

	b.Publish(context.Background(), event.DomainEvent{EventType: "ping"})
	assert.Empty(t, got, "dispatch waits for the thread")
	b.RunPending()
	assert.Equal(t, []string{"first:ping", "second:ping"}, got)
}

func TestBus_RunUntilWaitsForBackgroundPost(t *testing.T) {
	b := New()
	var done bool
	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Post(func() { done = true })
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.RunUntil(ctx, func() bool { return done }))
	assert.True(t, done)
}

func TestBus_RunUntilHonoursContext(t *testing.T) {
	b := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.RunUntil(ctx, func() bool { return false })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBus_StartDoStop(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		b.Post(func() { n.Add(1) })
	}
	require.NoError(t, b.Do(ctx, func() { n.Add(1) }))
	assert.Equal(t, int32(11), n.Load())

	b.Stop()
	assert.ErrorIs(t, b.Do(ctx, func() {}), ErrStopped)
	b.Post(func() { n.Add(1) })
	assert.Equal(t, 0, b.Pending())
	b.Stop()
}

func TestBus_StopWithoutStart(t *testing.T) {
	b := New()
	b.Stop()
	assert.ErrorIs(t, b.Do(context.Background(), func() {}), ErrStopped)
}
