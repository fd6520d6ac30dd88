package orchestrator

import (
	"time"

	"github.com/uber-go/tally/v4"

	"github.com/matthewbaird/recordview/internal/controller"
)

// Metric names.
const (
	metricSettled      = "controller_settled"
	metricAlternate    = "alternate_active"
	metricReapplied    = "controllers_reapplied"
	metricSaveBatches  = "save_batches"
	metricSaveOps      = "save_operations"
	metricSaveRejected = "save_rejected"
	metricSaveFailed   = "save_failed"
	metricSaveLatency  = "save_latency"
)

type metrics struct {
	scope tally.Scope
}

func newMetrics(scope tally.Scope) metrics {
	if scope == nil {
		scope = tally.NoopScope
	}
	return metrics{scope: scope.SubScope("screen")}
}

func (m metrics) settled(c controller.Controller) {
	m.scope.Tagged(map[string]string{
		"state": c.State().String(),
		"tab":   tabName(c),
	}).Counter(metricSettled).Inc(1)
	if alt, ok := c.(interface{ AlternateActive() bool }); ok && alt.AlternateActive() {
		m.scope.Tagged(map[string]string{"tab": tabName(c)}).Counter(metricAlternate).Inc(1)
	}
}

func (m metrics) reapplied(n int) {
	if n > 0 {
		m.scope.Counter(metricReapplied).Inc(int64(n))
	}
}

func (m metrics) saved(ops int, offline bool, took time.Duration) {
	where := "online"
	if offline {
		where = "offline"
	}
	s := m.scope.Tagged(map[string]string{"mode": where})
	s.Counter(metricSaveBatches).Inc(1)
	s.Counter(metricSaveOps).Inc(int64(ops))
	s.Timer(metricSaveLatency).Record(took)
}

func (m metrics) rejected() { m.scope.Counter(metricSaveRejected).Inc(1) }

func (m metrics) failed() { m.scope.Counter(metricSaveFailed).Inc(1) }

func tabName(c controller.Controller) string {
	if t := c.Tab(); t != nil {
		return t.Name
	}
	return ""
}
