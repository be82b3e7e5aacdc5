// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package mock

import (
	"context"
	"sync"

	"github.com/AccelByte/extend-guided-progression/pkg/metric"
)

// Accessor is a mock implementation of metric.Accessor for testing.
// Values are keyed by record kind; filtered counts can be keyed separately
// with SetFilteredCount.
type Accessor struct {
	// CountFunc is called when Count is invoked
	CountFunc func(ctx context.Context, userID, kind string, filters ...metric.Filter) (int, error)

	// AverageFunc is called when Average is invoked
	AverageFunc func(ctx context.Context, userID, kind, field string, filters ...metric.Filter) (float64, error)

	// StreakFunc is called when Streak is invoked
	StreakFunc func(ctx context.Context, userID, kind string) (int, error)

	// Default data
	Counts         map[string]int
	FilteredCounts map[string]int
	Averages       map[string]float64
	Streaks        map[string]int
	Errors         map[string]error

	// Call tracking
	CountCalls   []CountCall
	AverageCalls []AverageCall
	StreakCalls  []string

	mu sync.Mutex
}

// CountCall tracks parameters for Count calls
type CountCall struct {
	UserID  string
	Kind    string
	Filters []metric.Filter
}

// AverageCall tracks parameters for Average calls
type AverageCall struct {
	UserID string
	Kind   string
	Field  string
}

// NewAccessor creates a mock accessor with no records.
func NewAccessor() *Accessor {
	return &Accessor{
		Counts:         make(map[string]int),
		FilteredCounts: make(map[string]int),
		Averages:       make(map[string]float64),
		Streaks:        make(map[string]int),
		Errors:         make(map[string]error),
	}
}

// Count returns the configured count for kind. Calls with filters read
// FilteredCounts first.
func (m *Accessor) Count(ctx context.Context, userID, kind string, filters ...metric.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CountCalls = append(m.CountCalls, CountCall{UserID: userID, Kind: kind, Filters: filters})

	if m.CountFunc != nil {
		return m.CountFunc(ctx, userID, kind, filters...)
	}
	if err := m.Errors[kind]; err != nil {
		return 0, err
	}
	if len(filters) > 0 {
		if n, ok := m.FilteredCounts[kind]; ok {
			return n, nil
		}
	}
	return m.Counts[kind], nil
}

// Average returns the configured average for kind.field.
func (m *Accessor) Average(ctx context.Context, userID, kind, field string, filters ...metric.Filter) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AverageCalls = append(m.AverageCalls, AverageCall{UserID: userID, Kind: kind, Field: field})

	if m.AverageFunc != nil {
		return m.AverageFunc(ctx, userID, kind, field, filters...)
	}
	if err := m.Errors[kind]; err != nil {
		return 0, err
	}
	return m.Averages[kind+"."+field], nil
}

// Streak returns the configured streak for kind.
func (m *Accessor) Streak(ctx context.Context, userID, kind string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StreakCalls = append(m.StreakCalls, kind)

	if m.StreakFunc != nil {
		return m.StreakFunc(ctx, userID, kind)
	}
	if err := m.Errors[kind]; err != nil {
		return 0, err
	}
	return m.Streaks[kind], nil
}

// WithCount sets the unfiltered count for kind
func (m *Accessor) WithCount(kind string, n int) *Accessor {
	m.Counts[kind] = n
	return m
}

// WithFilteredCount sets the count returned when kind is queried with filters
func (m *Accessor) WithFilteredCount(kind string, n int) *Accessor {
	m.FilteredCounts[kind] = n
	return m
}

// WithAverage sets the average of kind.field
func (m *Accessor) WithAverage(kind, field string, v float64) *Accessor {
	m.Averages[kind+"."+field] = v
	return m
}

// WithStreak sets the streak for kind
func (m *Accessor) WithStreak(kind string, n int) *Accessor {
	m.Streaks[kind] = n
	return m
}

// WithError makes every query on kind fail
func (m *Accessor) WithError(kind string, err error) *Accessor {
	m.Errors[kind] = err
	return m
}

// Reset clears all call tracking
func (m *Accessor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CountCalls = nil
	m.AverageCalls = nil
	m.StreakCalls = nil
}
