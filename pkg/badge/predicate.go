// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package badge

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/AccelByte/extend-guided-progression/pkg/metric"
	"github.com/AccelByte/extend-guided-progression/pkg/rules"
)

// ErrNoPhase is returned by phase predicates when no progress is available.
var ErrNoPhase = errors.New("user phase is not available")

// PhaseReader exposes the user's current phase to phase predicates.
type PhaseReader interface {
	Loaded() bool
	CurrentPhase() int
}

// holds interprets a badge predicate against the user's aggregates.
func (e *Evaluator) holds(ctx context.Context, p rules.Predicate) (bool, error) {
	switch p.Kind {
	case rules.PredicateCountAtLeast:
		n, err := e.accessor.Count(ctx, e.userID, p.Record, p.Filters...)
		if err != nil {
			return false, err
		}
		return float64(n) >= p.Threshold, nil

	case rules.PredicateAverageAtLeast:
		avg, err := e.accessor.Average(ctx, e.userID, p.Record, p.Field, p.Filters...)
		if err != nil {
			return false, err
		}
		return avg >= p.Threshold, nil

	case rules.PredicateStreakAtLeast:
		kind, ok := e.tables.StreakKind(p.Streak)
		if !ok {
			return false, fmt.Errorf("unknown streak %q", p.Streak)
		}
		days, err := e.accessor.Streak(ctx, e.userID, kind)
		if err != nil {
			return false, err
		}
		return float64(days) >= p.Threshold, nil

	case rules.PredicateNoneInWindow:
		filters := append(append([]metric.Filter(nil), p.Filters...), metric.SinceDays(p.Days))
		n, err := e.accessor.Count(ctx, e.userID, p.Record, filters...)
		if err != nil {
			return false, err
		}
		return n == 0, nil

	case rules.PredicateMasteryRatio:
		total, err := e.accessor.Count(ctx, e.userID, p.Total)
		if err != nil {
			return false, err
		}
		if total == 0 {
			return false, nil
		}
		mastered, err := e.accessor.Count(ctx, e.userID, p.Record, p.Filters...)
		if err != nil {
			return false, err
		}
		return mastered >= int(math.Ceil(float64(total)*p.Ratio)), nil

	case rules.PredicatePhaseAtLeast:
		if e.phases == nil || !e.phases.Loaded() {
			return false, ErrNoPhase
		}
		return e.phases.CurrentPhase() >= p.Phase, nil

	default:
		return false, fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
}

// reads reports whether a predicate depends on records of kind.
func (e *Evaluator) reads(p rules.Predicate, kind string) bool {
	for _, k := range p.RecordKinds() {
		if k == kind {
			return true
		}
	}
	if p.Kind == rules.PredicateStreakAtLeast {
		if streakKind, ok := e.tables.StreakKind(p.Streak); ok && streakKind == kind {
			return true
		}
	}
	return false
}
