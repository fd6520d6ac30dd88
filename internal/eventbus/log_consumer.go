package eventbus

import (
	"context"
	"log"

	"github.com/matthewbaird/recordview/internal/event"
	"github.com/matthewbaird/recordview/internal/signals"
)

// LogConsumer logs domain events at or above a minimum weight.
type LogConsumer struct {
	minWeight string
}

// NewLogConsumer creates a consumer that logs events at least as
// significant as minWeight. An empty minWeight logs everything.
func NewLogConsumer(minWeight string) *LogConsumer {
	return &LogConsumer{minWeight: minWeight}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	if c.minWeight != "" && !signals.IsAtLeastWeight(evt.Weight, c.minWeight) {
		return nil
	}
	records := make([]string, len(evt.AffectedRecords))
	for i, ref := range evt.AffectedRecords {
		records[i] = ref.String()
	}
	log.Printf("event: %s [%s/%s] screen=%s %s records=%v",
		evt.EventType, evt.Category, evt.Weight, evt.ScreenID, evt.Summary, records)
	return nil
}
