// Package signals condenses the journal of one record into a health
// summary: per-category volume, trends, and escalations raised by rules
// over recent entries.
package signals

import (
	"time"

	"github.com/matthewbaird/recordview/internal/event"
)

// Trigger types understood by the evaluator.
const (
	TriggerCount         = "count"
	TriggerCrossCategory = "cross_category"
)

// Rule escalates a pattern of journal entries.
type Rule struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	TriggerType string        `json:"trigger_type"`
	EventType   string        `json:"event_type,omitempty"`
	Category    string        `json:"category,omitempty"`
	Count       int           `json:"count,omitempty"`
	Within      time.Duration `json:"within"`
	Required    []Requirement `json:"required,omitempty"`
	Severity    string        `json:"severity"` // "major" or "critical"
}

// Requirement is one leg of a cross-category rule.
type Requirement struct {
	Category  string `json:"category"`
	EventType string `json:"event_type,omitempty"`
	Weight    string `json:"weight,omitempty"`
	MinCount  int    `json:"min_count"`
}

// DefaultRules are evaluated by Summarize.
var DefaultRules = []Rule{
	{
		ID:          "repeated_save_rejections",
		Description: "Saves of this record keep being rejected.",
		TriggerType: TriggerCount,
		EventType:   event.TypeSaveRejected,
		Count:       3,
		Within:      24 * time.Hour,
		Severity:    "major",
	},
	{
		ID:          "offline_backlog",
		Description: "Changes to this record are piling up in the offline queue.",
		TriggerType: TriggerCount,
		EventType:   event.TypeOfflineQueued,
		Count:       5,
		Within:      24 * time.Hour,
		Severity:    "major",
	},
	{
		ID:          "broken_screen",
		Description: "Screens on this record fail to render and saves are rejected.",
		TriggerType: TriggerCrossCategory,
		Within:      time.Hour,
		Required: []Requirement{
			{Category: "controller", Weight: "major", MinCount: 2},
			{Category: "persist", EventType: event.TypeSaveRejected, MinCount: 1},
		},
		Severity: "critical",
	},
}

// WeightOrder ranks weights, lower is more severe.
var WeightOrder = map[string]int{
	"critical": 0,
	"major":    1,
	"minor":    2,
	"info":     3,
}

// WeightSeverity returns the numeric severity for a weight (lower = more severe).
// Returns 6 for unknown weights.
func WeightSeverity(weight string) int {
	if s, ok := WeightOrder[weight]; ok {
		return s
	}
	return 6
}

// IsAtLeastWeight returns true if actual is at least as severe as minimum.
func IsAtLeastWeight(actual, minimum string) bool {
	return WeightSeverity(actual) <= WeightSeverity(minimum)
}
