package signals

import (
	"sort"
	"time"

	"github.com/matthewbaird/recordview/internal/event"
	"github.com/matthewbaird/recordview/internal/record"
)

// CategorySummary aggregates entries within a single category.
type CategorySummary struct {
	Category string         `json:"category"`
	Count    int            `json:"count"`
	ByWeight map[string]int `json:"by_weight"`
	ByType   map[string]int `json:"by_type"`
	Trend    string         `json:"trend"` // "rising", "stable", "falling"
}

// Escalation is a rule that fired.
type Escalation struct {
	Rule            Rule      `json:"rule"`
	TriggeringCount int       `json:"triggering_count"`
	Earliest        time.Time `json:"earliest"`
	Latest          time.Time `json:"latest"`
}

// Summary is the condensed journal of one record.
type Summary struct {
	Record      record.Ref                 `json:"record"`
	Since       time.Time                  `json:"since"`
	Until       time.Time                  `json:"until"`
	Categories  map[string]CategorySummary `json:"categories"`
	Failures    int                        `json:"failures"`
	Health      string                     `json:"health"` // "healthy", "watch", "degraded", "critical"
	Reason      string                     `json:"reason"`
	Escalations []Escalation               `json:"escalations"`
}

// Summarize aggregates entries between since and until using rules.
// Rule windows end at until.
func Summarize(entries []event.Entry, ref record.Ref, since, until time.Time, rules []Rule) Summary {
	categories := make(map[string]*CategorySummary)
	failures := 0
	for _, e := range entries {
		if e.OccurredAt.Before(since) || e.OccurredAt.After(until) {
			continue
		}
		if isFailure(e) {
			failures++
		}
		cs, ok := categories[e.Category]
		if !ok {
			cs = &CategorySummary{
				Category: e.Category,
				ByWeight: make(map[string]int),
				ByType:   make(map[string]int),
			}
			categories[e.Category] = cs
		}
		cs.Count++
		cs.ByWeight[e.Weight]++
		cs.ByType[e.EventType]++
	}

	result := make(map[string]CategorySummary, len(categories))
	for cat, cs := range categories {
		cs.Trend = computeTrend(entries, cat, since, until)
		result[cat] = *cs
	}

	escalations := Evaluate(entries, rules, until)
	health, reason := computeHealth(failures, escalations)
	return Summary{
		Record:      ref,
		Since:       since,
		Until:       until,
		Categories:  result,
		Failures:    failures,
		Health:      health,
		Reason:      reason,
		Escalations: escalations,
	}
}

// Evaluate returns the rules that fire against entries at now.
func Evaluate(entries []event.Entry, rules []Rule, now time.Time) []Escalation {
	var out []Escalation
	for _, rule := range rules {
		var (
			es Escalation
			ok bool
		)
		switch rule.TriggerType {
		case TriggerCount:
			es, ok = evaluateCount(rule, entries, now)
		case TriggerCrossCategory:
			es, ok = evaluateCrossCategory(rule, entries, now)
		}
		if ok {
			out = append(out, es)
		}
	}
	return out
}

func inWindow(e event.Entry, rule Rule, now time.Time) bool {
	return !e.OccurredAt.Before(now.Add(-rule.Within)) && !e.OccurredAt.After(now)
}

func evaluateCount(rule Rule, entries []event.Entry, now time.Time) (Escalation, bool) {
	var matching []event.Entry
	for _, e := range entries {
		if !inWindow(e, rule, now) {
			continue
		}
		if rule.EventType != "" && e.EventType != rule.EventType {
			continue
		}
		if rule.Category != "" && e.Category != rule.Category {
			continue
		}
		matching = append(matching, e)
	}
	if len(matching) == 0 || len(matching) < rule.Count {
		return Escalation{}, false
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].OccurredAt.Before(matching[j].OccurredAt)
	})
	return Escalation{
		Rule:            rule,
		TriggeringCount: len(matching),
		Earliest:        matching[0].OccurredAt,
		Latest:          matching[len(matching)-1].OccurredAt,
	}, true
}

func evaluateCrossCategory(rule Rule, entries []event.Entry, now time.Time) (Escalation, bool) {
	counts := make(map[int]int, len(rule.Required))
	var earliest, latest time.Time
	for _, e := range entries {
		if !inWindow(e, rule, now) {
			continue
		}
		for i, req := range rule.Required {
			if e.Category != req.Category {
				continue
			}
			if req.EventType != "" && e.EventType != req.EventType {
				continue
			}
			if req.Weight != "" && !IsAtLeastWeight(e.Weight, req.Weight) {
				continue
			}
			counts[i]++
			if earliest.IsZero() || e.OccurredAt.Before(earliest) {
				earliest = e.OccurredAt
			}
			if e.OccurredAt.After(latest) {
				latest = e.OccurredAt
			}
		}
	}

	total := 0
	for i, req := range rule.Required {
		if counts[i] < req.MinCount {
			return Escalation{}, false
		}
		total += counts[i]
	}
	if total == 0 {
		return Escalation{}, false
	}
	return Escalation{Rule: rule, TriggeringCount: total, Earliest: earliest, Latest: latest}, true
}

// computeTrend compares volume in the first vs second half of the window.
func computeTrend(entries []event.Entry, category string, since, until time.Time) string {
	mid := since.Add(until.Sub(since) / 2)
	var firstHalf, secondHalf int
	for _, e := range entries {
		if e.Category != category || e.OccurredAt.Before(since) || e.OccurredAt.After(until) {
			continue
		}
		if e.OccurredAt.Before(mid) {
			firstHalf++
		} else {
			secondHalf++
		}
	}
	if secondHalf > firstHalf+1 {
		return "rising"
	}
	if firstHalf > secondHalf+1 {
		return "falling"
	}
	return "stable"
}

// isFailure reports entries that signal something went wrong: rejected
// saves and controllers settling with an error.
func isFailure(e event.Entry) bool {
	switch e.EventType {
	case event.TypeSaveRejected:
		return true
	case event.TypeStateChanged:
		return IsAtLeastWeight(e.Weight, "major")
	}
	return false
}

func computeHealth(failures int, escalations []Escalation) (string, string) {
	for _, e := range escalations {
		if e.Rule.Severity == "critical" {
			return "critical", "Critical escalation triggered: " + e.Rule.Description
		}
	}
	if len(escalations) > 0 {
		return "degraded", "Escalation triggered: " + escalations[0].Rule.Description
	}
	switch {
	case failures >= 2:
		return "degraded", "Several failures or rejections in the window."
	case failures == 1:
		return "watch", "One failure or rejection in the window."
	}
	return "healthy", "No failures in the window."
}
