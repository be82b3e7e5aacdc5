// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package rules

import (
	"errors"
	"fmt"

	"github.com/AccelByte/extend-guided-progression/pkg/metric"
)

// ErrInvalidRules wraps every validation failure.
var ErrInvalidRules = errors.New("invalid rule tables")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRules, fmt.Sprintf(format, args...))
}

// Validate checks the tables for internal consistency and builds the lookup
// indexes. It must succeed before any lookup method is used.
func (t *Tables) Validate() error {
	if err := t.indexActivities(); err != nil {
		return err
	}
	if err := t.indexPhases(); err != nil {
		return err
	}
	if err := t.checkPrerequisiteCycles(); err != nil {
		return err
	}
	if err := t.validateLevels(); err != nil {
		return err
	}
	if err := t.validateRewards(); err != nil {
		return err
	}
	if err := t.validateMetrics(); err != nil {
		return err
	}
	return t.indexBadges()
}

func (t *Tables) indexActivities() error {
	t.activityByID = make(map[int]*Activity, len(t.Activities))
	for i := range t.Activities {
		a := &t.Activities[i]
		if _, exists := t.activityByID[a.ID]; exists {
			return invalid("duplicate activity id %d", a.ID)
		}
		if a.Kind != "" {
			if err := metric.ValidateField(a.Kind); err != nil {
				return invalid("activity %d: record kind: %v", a.ID, err)
			}
		}
		t.activityByID[a.ID] = a
	}
	return nil
}

func (t *Tables) indexPhases() error {
	if len(t.Phases) == 0 {
		return invalid("no phases defined")
	}

	t.phaseByID = make(map[int]*Phase, len(t.Phases))
	t.activityToPhase = make(map[int]int, len(t.Activities))
	t.terminalPhase = t.Phases[0].ID

	for i := range t.Phases {
		p := &t.Phases[i]
		if _, exists := t.phaseByID[p.ID]; exists {
			return invalid("duplicate phase id %d", p.ID)
		}
		t.phaseByID[p.ID] = p
		if p.ID > t.terminalPhase {
			t.terminalPhase = p.ID
		}

		for _, activityID := range p.Activities {
			if _, ok := t.activityByID[activityID]; !ok {
				return invalid("phase %d lists unknown activity %d", p.ID, activityID)
			}
			if owner, taken := t.activityToPhase[activityID]; taken {
				return invalid("activity %d listed by phases %d and %d", activityID, owner, p.ID)
			}
			t.activityToPhase[activityID] = p.ID
		}

		for name, threshold := range p.Criteria {
			if threshold < 0 {
				return invalid("phase %d criterion %s has negative threshold", p.ID, name)
			}
		}

		if p.MinDays < 0 {
			return invalid("phase %d has negative minDays", p.ID)
		}
		if p.MinDays > 0 {
			if _, ok := t.Streaks[p.Streak]; !ok {
				return invalid("phase %d requires %d days of unknown streak %q", p.ID, p.MinDays, p.Streak)
			}
		}
	}

	if _, ok := t.activityToPhase[OverviewActivity]; !ok {
		return invalid("overview activity %d is not bound to a phase", OverviewActivity)
	}

	for _, p := range t.Phases {
		for _, prereq := range p.Prerequisites {
			if _, ok := t.phaseByID[prereq]; !ok {
				return invalid("phase %d has unknown prerequisite %d", p.ID, prereq)
			}
		}
	}

	for name, kind := range t.Streaks {
		if err := metric.ValidateField(kind); err != nil {
			return invalid("streak %s: %v", name, err)
		}
	}

	return nil
}

// checkPrerequisiteCycles walks the prerequisite graph depth-first and
// rejects any back edge.
func (t *Tables) checkPrerequisiteCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int]int, len(t.Phases))

	var visit func(id int) error
	visit = func(id int) error {
		switch state[id] {
		case visiting:
			return invalid("prerequisite cycle through phase %d", id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, prereq := range t.phaseByID[id].Prerequisites {
			if err := visit(prereq); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for _, p := range t.Phases {
		if err := visit(p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tables) validateLevels() error {
	if len(t.Levels) == 0 {
		return invalid("no levels defined")
	}
	if t.Levels[0].XP != 0 {
		return invalid("first level must require 0 XP, got %d", t.Levels[0].XP)
	}
	for i, l := range t.Levels {
		if l.Level != i+1 {
			return invalid("level at position %d is numbered %d", i, l.Level)
		}
		if i > 0 && l.XP <= t.Levels[i-1].XP {
			return invalid("level %d threshold %d is not above level %d", l.Level, l.XP, t.Levels[i-1].Level)
		}
	}
	return nil
}

func (t *Tables) validateRewards() error {
	for code, r := range t.Rewards {
		if r.XP < 0 {
			return invalid("reward %s has negative XP", code)
		}
	}
	for _, a := range t.Activities {
		if a.Reward == "" {
			continue
		}
		if _, ok := t.Rewards[a.Reward]; !ok {
			return invalid("activity %d earns unknown reward %q", a.ID, a.Reward)
		}
	}
	return nil
}

func (t *Tables) validateMetrics() error {
	for name, m := range t.Metrics {
		if err := metric.ValidateField(m.Record); err != nil {
			return invalid("metric %s: %v", name, err)
		}
		switch m.Type {
		case MetricCount:
		case MetricAverage:
			if err := metric.ValidateField(m.Field); err != nil {
				return invalid("metric %s: %v", name, err)
			}
		default:
			return invalid("metric %s has unknown type %q", name, m.Type)
		}
		for _, f := range m.Filters {
			if err := f.Validate(); err != nil {
				return invalid("metric %s: %v", name, err)
			}
		}
	}

	for _, p := range t.Phases {
		for name := range p.Criteria {
			if _, defined := t.Metrics[name]; defined {
				continue
			}
			if err := metric.ValidateField(name); err != nil {
				return invalid("phase %d criterion: %v", p.ID, err)
			}
		}
	}
	return nil
}

func (t *Tables) indexBadges() error {
	categories := make(map[string]bool, len(t.Categories))
	for _, c := range t.Categories {
		categories[c] = true
	}

	t.badgeByID = make(map[string]*Badge, len(t.Badges))
	for i := range t.Badges {
		b := &t.Badges[i]
		if b.ID == "" {
			return invalid("badge with empty id")
		}
		if _, exists := t.badgeByID[b.ID]; exists {
			return invalid("duplicate badge id %s", b.ID)
		}
		if !categories[b.Category] {
			return invalid("badge %s has unknown category %q", b.ID, b.Category)
		}
		if b.XP < 0 {
			return invalid("badge %s has negative XP reward", b.ID)
		}
		if err := t.validatePredicate(b.Predicate); err != nil {
			return invalid("badge %s: %v", b.ID, err)
		}
		t.badgeByID[b.ID] = b
	}
	return nil
}

func (t *Tables) validatePredicate(p Predicate) error {
	for _, f := range p.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	switch p.Kind {
	case PredicateCountAtLeast:
		return metric.ValidateField(p.Record)
	case PredicateAverageAtLeast:
		if err := metric.ValidateField(p.Record); err != nil {
			return err
		}
		return metric.ValidateField(p.Field)
	case PredicateStreakAtLeast:
		if _, ok := t.Streaks[p.Streak]; !ok {
			return fmt.Errorf("unknown streak %q", p.Streak)
		}
	case PredicateNoneInWindow:
		if p.Days <= 0 {
			return fmt.Errorf("none_in_window needs a positive day count")
		}
		return metric.ValidateField(p.Record)
	case PredicateMasteryRatio:
		if p.Ratio <= 0 || p.Ratio > 1 {
			return fmt.Errorf("mastery ratio %v is outside (0, 1]", p.Ratio)
		}
		if err := metric.ValidateField(p.Total); err != nil {
			return err
		}
		return metric.ValidateField(p.Record)
	case PredicatePhaseAtLeast:
		if _, ok := t.phaseByID[p.Phase]; !ok {
			return fmt.Errorf("unknown phase %d", p.Phase)
		}
	default:
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	return nil
}
