// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package rules holds the static tables that drive the program: phases and
// their completion criteria, activities, level thresholds, badges and the XP
// reward table. Tables are plain data loaded from YAML and validated once.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AccelByte/extend-guided-progression/pkg/metric"
)

// OverviewActivity is the dashboard screen, reachable in every mode and state.
const OverviewActivity = 0

// Tables is the complete rule set of a program.
type Tables struct {
	Phases     []Phase           `yaml:"phases"`
	Activities []Activity        `yaml:"activities"`
	Levels     []Level           `yaml:"levels"`
	Categories []string          `yaml:"categories"`
	Badges     []Badge           `yaml:"badges"`
	Rewards    map[string]Reward `yaml:"rewards"`
	Metrics    map[string]Metric `yaml:"metrics,omitempty"`
	Streaks    map[string]string `yaml:"streaks"`

	phaseByID       map[int]*Phase
	activityByID    map[int]*Activity
	activityToPhase map[int]int
	badgeByID       map[string]*Badge
	terminalPhase   int
}

// Phase is one stage of the program.
type Phase struct {
	ID            int            `yaml:"id"`
	Name          string         `yaml:"name"`
	Title         string         `yaml:"title"`
	Description   string         `yaml:"description,omitempty"`
	Activities    []int          `yaml:"activities"`
	Required      bool           `yaml:"required"`
	Prerequisites []int          `yaml:"prerequisites,omitempty"`
	Criteria      map[string]int `yaml:"criteria,omitempty"`
	MinDays       int            `yaml:"minDays,omitempty"`
	Streak        string         `yaml:"streak,omitempty"`
}

// CriteriaNames returns the criteria keys in a stable order.
func (p *Phase) CriteriaNames() []string {
	names := make([]string, 0, len(p.Criteria))
	for name := range p.Criteria {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Activity is a screen of the program. Saving a record on it writes a record
// of Kind and earns the Reward code.
type Activity struct {
	ID     int    `yaml:"id"`
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind,omitempty"`
	Reward string `yaml:"reward,omitempty"`
}

// Level is one row of the threshold table.
type Level struct {
	Level int    `yaml:"level" json:"level"`
	XP    int    `yaml:"xp" json:"xp"`
	Title string `yaml:"title" json:"title"`
	Color string `yaml:"color" json:"color"`
	Icon  string `yaml:"icon" json:"icon"`
}

// Badge is a one-time achievement.
type Badge struct {
	ID           string    `yaml:"id"`
	Name         string    `yaml:"name"`
	Icon         string    `yaml:"icon"`
	Description  string    `yaml:"description"`
	Category     string    `yaml:"category"`
	XP           int       `yaml:"xp"`
	RewardItemID string    `yaml:"rewardItemId,omitempty"`
	Predicate    Predicate `yaml:"predicate"`
}

// PredicateKind tags the variant of a badge predicate.
type PredicateKind string

const (
	PredicateCountAtLeast   PredicateKind = "count_at_least"
	PredicateAverageAtLeast PredicateKind = "average_at_least"
	PredicateStreakAtLeast  PredicateKind = "streak_at_least"
	PredicateNoneInWindow   PredicateKind = "none_in_window"
	PredicateMasteryRatio   PredicateKind = "mastery_ratio"
	PredicatePhaseAtLeast   PredicateKind = "phase_at_least"
)

// Predicate is a badge condition. Which fields are read depends on Kind:
//
//	count_at_least    Record, Filters, Threshold
//	average_at_least  Record, Field, Filters, Threshold
//	streak_at_least   Streak, Threshold
//	none_in_window    Record, Days
//	mastery_ratio     Total, Record, Filters, Ratio
//	phase_at_least    Phase
type Predicate struct {
	Kind      PredicateKind   `yaml:"kind"`
	Record    string          `yaml:"record,omitempty"`
	Field     string          `yaml:"field,omitempty"`
	Filters   []metric.Filter `yaml:"filters,omitempty"`
	Streak    string          `yaml:"streak,omitempty"`
	Threshold float64         `yaml:"threshold,omitempty"`
	Days      int             `yaml:"days,omitempty"`
	Total     string          `yaml:"total,omitempty"`
	Ratio     float64         `yaml:"ratio,omitempty"`
	Phase     int             `yaml:"phase,omitempty"`
}

// RecordKinds lists the activity record kinds the predicate reads.
func (p Predicate) RecordKinds() []string {
	var kinds []string
	if p.Record != "" {
		kinds = append(kinds, p.Record)
	}
	if p.Total != "" && p.Total != p.Record {
		kinds = append(kinds, p.Total)
	}
	return kinds
}

// Reward is an entry of the XP reward table.
type Reward struct {
	XP    int    `yaml:"xp"`
	Label string `yaml:"label,omitempty"`
}

// MetricType is the aggregate behind a named criterion.
type MetricType string

const (
	MetricCount   MetricType = "count"
	MetricAverage MetricType = "average"
)

// Metric names an aggregate a phase criterion compares against its threshold.
type Metric struct {
	Type    MetricType      `yaml:"type"`
	Record  string          `yaml:"record"`
	Field   string          `yaml:"field,omitempty"`
	Filters []metric.Filter `yaml:"filters,omitempty"`
}

// Phase returns the phase with the given id.
func (t *Tables) Phase(id int) (*Phase, bool) {
	p, ok := t.phaseByID[id]
	return p, ok
}

// Activity returns the activity with the given id.
func (t *Tables) Activity(id int) (*Activity, bool) {
	a, ok := t.activityByID[id]
	return a, ok
}

// PhaseOfActivity returns the phase an activity belongs to.
func (t *Tables) PhaseOfActivity(activityID int) (int, bool) {
	p, ok := t.activityToPhase[activityID]
	return p, ok
}

// Badge returns the badge with the given id.
func (t *Tables) Badge(id string) (*Badge, bool) {
	b, ok := t.badgeByID[id]
	return b, ok
}

// TerminalPhase is the highest phase id. Advancing past it completes the program.
func (t *Tables) TerminalPhase() int {
	return t.terminalPhase
}

// RewardXP returns the XP a reason code earns, or 0 when the code is unknown.
func (t *Tables) RewardXP(code string) int {
	return t.Rewards[code].XP
}

// ReasonLabel returns the display label of a reason code. Codes without a
// label are shown with underscores replaced by spaces.
func (t *Tables) ReasonLabel(code string) string {
	if r, ok := t.Rewards[code]; ok && r.Label != "" {
		return r.Label
	}
	if strings.HasPrefix(code, BadgeReasonPrefix) {
		if b, ok := t.Badge(strings.TrimPrefix(code, BadgeReasonPrefix)); ok {
			return b.Name
		}
	}
	return strings.ReplaceAll(code, "_", " ")
}

// StreakKind returns the record kind a named streak counts.
func (t *Tables) StreakKind(name string) (string, bool) {
	kind, ok := t.Streaks[name]
	return kind, ok
}

// MetricFor resolves a criterion name. Names without a definition count
// records of the kind with the same name.
func (t *Tables) MetricFor(name string) Metric {
	if m, ok := t.Metrics[name]; ok {
		return m
	}
	return Metric{Type: MetricCount, Record: name}
}

// BadgeReasonPrefix prefixes the reason code of XP awarded for a badge.
const BadgeReasonPrefix = "badge_"

// BadgeReason is the reason code recorded when a badge pays out its reward.
func BadgeReason(badgeID string) string {
	return BadgeReasonPrefix + badgeID
}

// PhaseCompleteReason is the reason code for finishing a phase.
func PhaseCompleteReason(phase int) string {
	return fmt.Sprintf("phase_%d_complete", phase)
}

// ProgramCompleteReason is the reason code for finishing the terminal phase.
const ProgramCompleteReason = "program_completed"
