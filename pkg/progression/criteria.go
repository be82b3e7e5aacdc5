// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package progression

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-guided-progression/pkg/metric"
	"github.com/AccelByte/extend-guided-progression/pkg/metrics"
	"github.com/AccelByte/extend-guided-progression/pkg/rules"
)

// Criterion is the result of one threshold check.
type Criterion struct {
	Name      string
	Actual    float64
	Threshold float64
	Met       bool
	Err       error
}

// Evaluation is the result of checking every criterion of a phase.
type Evaluation struct {
	Complete bool
	Criteria []Criterion
	Unmet    []string
}

// Percent is the mean over criteria of min(actual/threshold, 1), as a percentage.
// A phase without criteria is 100.
func (e Evaluation) Percent() int {
	if len(e.Criteria) == 0 {
		return 100
	}

	var sum float64
	for _, c := range e.Criteria {
		switch {
		case c.Err != nil:
		case c.Threshold <= 0 || c.Actual >= c.Threshold:
			sum++
		default:
			sum += c.Actual / c.Threshold
		}
	}
	return int(math.Round(sum / float64(len(e.Criteria)) * 100))
}

// CriteriaEvaluator answers whether a user meets the completion criteria of a phase.
type CriteriaEvaluator struct {
	tables   *rules.Tables
	accessor metric.Accessor
}

// NewCriteriaEvaluator creates an evaluator reading aggregates from accessor.
func NewCriteriaEvaluator(tables *rules.Tables, accessor metric.Accessor) *CriteriaEvaluator {
	return &CriteriaEvaluator{
		tables:   tables,
		accessor: accessor,
	}
}

// StreakCriterion names the minimum-days check of a phase in Evaluation.Unmet.
func StreakCriterion(streak string) string {
	return streak + "_streak"
}

// Evaluate checks every criterion of phase. All criteria are read even after
// one fails, so Unmet is complete. A failed read counts as unmet.
func (e *CriteriaEvaluator) Evaluate(ctx context.Context, userID string, phase *rules.Phase) Evaluation {
	var eval Evaluation

	for _, name := range phase.CriteriaNames() {
		c := Criterion{Name: name, Threshold: float64(phase.Criteria[name])}
		c.Actual, c.Err = e.measure(ctx, userID, e.tables.MetricFor(name))
		eval.Criteria = append(eval.Criteria, e.settle(userID, phase.ID, c))
	}

	if phase.MinDays > 0 {
		c := Criterion{Name: StreakCriterion(phase.Streak), Threshold: float64(phase.MinDays)}
		kind, ok := e.tables.StreakKind(phase.Streak)
		if !ok {
			c.Err = fmt.Errorf("unknown streak %q", phase.Streak)
		} else {
			var days int
			days, c.Err = e.accessor.Streak(ctx, userID, kind)
			c.Actual = float64(days)
		}
		eval.Criteria = append(eval.Criteria, e.settle(userID, phase.ID, c))
	}

	for _, c := range eval.Criteria {
		if !c.Met {
			eval.Unmet = append(eval.Unmet, c.Name)
		}
	}
	eval.Complete = len(eval.Unmet) == 0
	return eval
}

func (e *CriteriaEvaluator) settle(userID string, phaseID int, c Criterion) Criterion {
	if c.Err != nil {
		logrus.Errorf("failed to read criterion %s of phase %d for user %s: %v", c.Name, phaseID, userID, c.Err)
		metrics.MetricReadErrorsTotal.WithLabelValues("criteria").Inc()
		c.Actual = 0
		return c
	}
	c.Met = c.Actual >= c.Threshold
	if !c.Met {
		logrus.Debugf("phase %d for user %s: %s is %.2f, needs %.0f", phaseID, userID, c.Name, c.Actual, c.Threshold)
	}
	return c
}

func (e *CriteriaEvaluator) measure(ctx context.Context, userID string, m rules.Metric) (float64, error) {
	switch m.Type {
	case rules.MetricAverage:
		return e.accessor.Average(ctx, userID, m.Record, m.Field, m.Filters...)
	case rules.MetricCount:
		n, err := e.accessor.Count(ctx, userID, m.Record, m.Filters...)
		return float64(n), err
	default:
		return 0, fmt.Errorf("unknown metric type %q", m.Type)
	}
}
