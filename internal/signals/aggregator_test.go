package signals

import (
	"testing"
	"time"

	"github.com/matthewbaird/recordview/internal/event"
	"github.com/matthewbaird/recordview/internal/record"
)

var (
	now     = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	company = record.Ref{InfoArea: "FI", RecordID: "1"}
)

func makeEntry(eventType, category, weight string, ago time.Duration) event.Entry {
	return event.Entry{
		EventID:    "test-" + eventType,
		EventType:  eventType,
		OccurredAt: now.Add(-ago),
		Record:     company,
		Summary:    "test entry",
		Category:   category,
		Weight:     weight,
	}
}

func TestSummarize_CategoryCounts(t *testing.T) {
	entries := []event.Entry{
		makeEntry(event.TypeScreenOpened, "screen", "info", 2*time.Hour),
		makeEntry(event.TypeScreenOpened, "screen", "info", time.Hour),
		makeEntry(event.TypeRecordsSaved, "persist", "major", time.Hour),
		makeEntry(event.TypeRecordsSaved, "persist", "major", 30*24*time.Hour),
	}

	summary := Summarize(entries, company, now.Add(-24*time.Hour), now, DefaultRules)

	if len(summary.Categories) != 2 {
		t.Errorf("got %d categories, want 2", len(summary.Categories))
	}
	if summary.Categories["screen"].Count != 2 {
		t.Errorf("screen count = %d, want 2", summary.Categories["screen"].Count)
	}
	if summary.Categories["persist"].ByType[event.TypeRecordsSaved] != 1 {
		t.Errorf("persist saves = %d, want 1", summary.Categories["persist"].ByType[event.TypeRecordsSaved])
	}
	if summary.Health != "healthy" {
		t.Errorf("health = %q, want healthy", summary.Health)
	}
}

func TestSummarize_SingleFailureIsWatch(t *testing.T) {
	entries := []event.Entry{
		makeEntry(event.TypeStateChanged, "controller", "major", time.Hour),
		makeEntry(event.TypeStateChanged, "controller", "info", time.Hour),
	}

	summary := Summarize(entries, company, now.Add(-24*time.Hour), now, DefaultRules)

	if summary.Failures != 1 {
		t.Errorf("failures = %d, want 1", summary.Failures)
	}
	if summary.Health != "watch" {
		t.Errorf("health = %q, want watch", summary.Health)
	}
}

func TestSummarize_RepeatedRejectionsEscalate(t *testing.T) {
	entries := []event.Entry{
		makeEntry(event.TypeSaveRejected, "persist", "major", 3*time.Hour),
		makeEntry(event.TypeSaveRejected, "persist", "major", 2*time.Hour),
		makeEntry(event.TypeSaveRejected, "persist", "major", 5*time.Hour),
	}

	summary := Summarize(entries, company, now.Add(-7*24*time.Hour), now, DefaultRules)

	if len(summary.Escalations) != 1 {
		t.Fatalf("got %d escalations, want 1", len(summary.Escalations))
	}
	es := summary.Escalations[0]
	if es.Rule.ID != "repeated_save_rejections" {
		t.Errorf("rule = %q, want repeated_save_rejections", es.Rule.ID)
	}
	if !es.Earliest.Equal(now.Add(-5*time.Hour)) || !es.Latest.Equal(now.Add(-2*time.Hour)) {
		t.Errorf("window = %v..%v", es.Earliest, es.Latest)
	}
	if summary.Health != "degraded" {
		t.Errorf("health = %q, want degraded", summary.Health)
	}
}

func TestEvaluate_CountOutsideWindow(t *testing.T) {
	entries := []event.Entry{
		makeEntry(event.TypeSaveRejected, "persist", "major", 2*time.Hour),
		makeEntry(event.TypeSaveRejected, "persist", "major", 3*time.Hour),
		makeEntry(event.TypeSaveRejected, "persist", "major", 48*time.Hour),
	}

	if got := Evaluate(entries, DefaultRules, now); len(got) != 0 {
		t.Errorf("got %d escalations, want 0", len(got))
	}
}

func TestEvaluate_CrossCategoryIsCritical(t *testing.T) {
	entries := []event.Entry{
		makeEntry(event.TypeStateChanged, "controller", "major", 10*time.Minute),
		makeEntry(event.TypeStateChanged, "controller", "major", 20*time.Minute),
		makeEntry(event.TypeSaveRejected, "persist", "major", 5*time.Minute),
		// A successful save is major too but does not count as a rejection.
		makeEntry(event.TypeRecordsSaved, "persist", "major", 5*time.Minute),
	}

	summary := Summarize(entries, company, now.Add(-24*time.Hour), now, DefaultRules)

	if summary.Health != "critical" {
		t.Fatalf("health = %q, want critical", summary.Health)
	}
	var found bool
	for _, es := range summary.Escalations {
		if es.Rule.ID == "broken_screen" {
			found = true
			if es.TriggeringCount != 3 {
				t.Errorf("triggering count = %d, want 3", es.TriggeringCount)
			}
		}
	}
	if !found {
		t.Error("broken_screen did not fire")
	}
}

func TestEvaluate_CrossCategoryNeedsEveryLeg(t *testing.T) {
	entries := []event.Entry{
		makeEntry(event.TypeStateChanged, "controller", "major", 10*time.Minute),
		makeEntry(event.TypeStateChanged, "controller", "major", 20*time.Minute),
		makeEntry(event.TypeRecordsSaved, "persist", "major", 5*time.Minute),
	}
	rules := []Rule{DefaultRules[2]}

	if got := Evaluate(entries, rules, now); len(got) != 0 {
		t.Errorf("got %d escalations, want 0", len(got))
	}
}

func TestComputeTrend(t *testing.T) {
	since := now.Add(-10 * 24 * time.Hour)
	rising := []event.Entry{
		makeEntry(event.TypeScreenOpened, "screen", "info", 9*24*time.Hour),
		makeEntry(event.TypeScreenOpened, "screen", "info", 2*24*time.Hour),
		makeEntry(event.TypeScreenOpened, "screen", "info", 24*time.Hour),
		makeEntry(event.TypeScreenOpened, "screen", "info", time.Hour),
	}
	if got := computeTrend(rising, "screen", since, now); got != "rising" {
		t.Errorf("trend = %q, want rising", got)
	}
	if got := computeTrend(rising[:2], "screen", since, now); got != "stable" {
		t.Errorf("trend = %q, want stable", got)
	}
}

func TestIsAtLeastWeight(t *testing.T) {
	tests := []struct {
		actual, minimum string
		want            bool
	}{
		{"critical", "major", true},
		{"major", "major", true},
		{"minor", "major", false},
		{"bogus", "info", false},
	}
	for _, tt := range tests {
		if got := IsAtLeastWeight(tt.actual, tt.minimum); got != tt.want {
			t.Errorf("IsAtLeastWeight(%q, %q) = %v, want %v", tt.actual, tt.minimum, got, tt.want)
		}
	}
}
