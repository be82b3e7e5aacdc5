// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package sqlstore

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/AccelByte/extend-guided-progression/pkg/metric"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// setupTestStore opens a store in a temporary directory with a fixed clock
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "activities.db"), WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insert(t *testing.T, s *Store, userID, kind string, daysAgo int, fields map[string]interface{}) string {
	t.Helper()

	rec := &metric.Record{
		UserID:     userID,
		Kind:       kind,
		RecordedOn: dateOnly(fixedNow).AddDate(0, 0, -daysAgo),
		Fields:     fields,
	}
	if err := s.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return rec.ID
}

func TestInsertFillsDefaults(t *testing.T) {
	s := setupTestStore(t)

	rec := &metric.Record{UserID: "user-1", Kind: "daily_moods"}
	if err := s.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if rec.ID == "" {
		t.Error("Insert() did not assign an id")
	}
	if !rec.RecordedOn.Equal(dateOnly(fixedNow)) {
		t.Errorf("RecordedOn = %v, expected %v", rec.RecordedOn, dateOnly(fixedNow))
	}
}

func TestInsertRejectsBadKind(t *testing.T) {
	s := setupTestStore(t)

	err := s.Insert(context.Background(), &metric.Record{UserID: "user-1", Kind: "Drop Table"})
	if !errors.Is(err, metric.ErrInvalidField) {
		t.Errorf("Insert() error = %v, expected ErrInvalidField", err)
	}
}

func TestCountFilters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	insert(t, s, "user-1", "facing_agoraphobia", 0, map[string]interface{}{"max_anxiety": 2})
	insert(t, s, "user-1", "facing_agoraphobia", 1, map[string]interface{}{"max_anxiety": 3})
	insert(t, s, "user-1", "facing_agoraphobia", 2, map[string]interface{}{"max_anxiety": 9})
	insert(t, s, "user-2", "facing_agoraphobia", 0, map[string]interface{}{"max_anxiety": 1})
	insert(t, s, "user-1", "panic_attacks", 1, map[string]interface{}{"time_began": "23:15"})
	insert(t, s, "user-1", "panic_attacks", 10, map[string]interface{}{"time_began": "04:30"})
	insert(t, s, "user-1", "panic_attacks", 3, map[string]interface{}{"time_began": "14:00"})
	insert(t, s, "user-1", "breathing_records", 0, map[string]interface{}{"avg_breaths_per_minute": 9.5})
	insert(t, s, "user-1", "breathing_records", 0, map[string]interface{}{"avg_breaths_per_minute": 10.8})

	tests := []struct {
		name     string
		kind     string
		filters  []metric.Filter
		expected int
	}{
		{name: "all of kind", kind: "facing_agoraphobia", expected: 3},
		{name: "mastered", kind: "facing_agoraphobia", filters: []metric.Filter{metric.Lte("max_anxiety", 3)}, expected: 2},
		{name: "brave", kind: "facing_agoraphobia", filters: []metric.Filter{metric.Gte("max_anxiety", 8)}, expected: 1},
		{name: "night window", kind: "panic_attacks", filters: []metric.Filter{metric.TimeBetween("time_began", "22:00", "06:00")}, expected: 2},
		{name: "day window", kind: "panic_attacks", filters: []metric.Filter{metric.TimeBetween("time_began", "08:00", "18:00")}, expected: 1},
		{name: "last week", kind: "panic_attacks", filters: []metric.Filter{metric.SinceDays(7)}, expected: 2},
		{
			name: "bucketed range",
			kind: "breathing_records",
			filters: []metric.Filter{
				metric.Gte("avg_breaths_per_minute", 9.5),
				metric.Lte("avg_breaths_per_minute", 10.5),
			},
			expected: 1,
		},
		{name: "no records", kind: "daily_moods", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Count(ctx, "user-1", tt.kind, tt.filters...)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("Count() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestCountInvalidFilter(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Count(context.Background(), "user-1", "panic_attacks", metric.Filter{Field: "x", Op: "like"})
	if !errors.Is(err, metric.ErrInvalidFilter) {
		t.Errorf("Count() error = %v, expected ErrInvalidFilter", err)
	}
}

func TestAverage(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	avg, err := s.Average(ctx, "user-1", "breathing_records", "success_rating")
	if err != nil {
		t.Fatalf("Average() error = %v", err)
	}
	if avg != 0 {
		t.Errorf("Average() on empty set = %v, expected 0", avg)
	}

	insert(t, s, "user-1", "breathing_records", 0, map[string]interface{}{"success_rating": 6})
	insert(t, s, "user-1", "breathing_records", 1, map[string]interface{}{"success_rating": 7})
	insert(t, s, "user-1", "breathing_records", 2, nil)

	avg, err = s.Average(ctx, "user-1", "breathing_records", "success_rating")
	if err != nil {
		t.Fatalf("Average() error = %v", err)
	}
	if math.Abs(avg-6.5) > 1e-9 {
		t.Errorf("Average() = %v, expected 6.5", avg)
	}
}

func TestCountTimeBetweenNormalizesClocks(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	insert(t, s, "user-1", "panic_attacks", 0, map[string]interface{}{"time_began": "06:00:00"})
	insert(t, s, "user-1", "panic_attacks", 0, map[string]interface{}{"time_began": "6:30"})
	insert(t, s, "user-1", "panic_attacks", 0, map[string]interface{}{"time_began": "9:05"})
	insert(t, s, "user-1", "panic_attacks", 0, map[string]interface{}{"time_began": "noon"})
	insert(t, s, "user-1", "panic_attacks", 0, map[string]interface{}{"intensity": 7})

	tests := []struct {
		name     string
		from, to string
		expected int
	}{
		{"end bound with seconds", "22:00", "06:00", 1},
		{"unpadded hour", "06:15", "07:00", 1},
		{"unpadded morning", "08:00", "12:00", 1},
		{"whole day", "00:00", "23:59", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.Count(ctx, "user-1", "panic_attacks", metric.TimeBetween("time_began", tt.from, tt.to))
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if n != tt.expected {
				t.Errorf("Count(%s..%s) = %d, expected %d", tt.from, tt.to, n, tt.expected)
			}
		})
	}
}

func TestCountSinceDaysOutsideUTC(t *testing.T) {
	// 01:00 on March 10 in UTC+9 is still March 9 in UTC, and days are UTC days
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	now := time.Date(2025, 3, 10, 1, 0, 0, 0, tokyo)
	s, err := Open(filepath.Join(t.TempDir(), "activities.db"), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	today := &metric.Record{UserID: "user-1", Kind: "panic_attacks"}
	if err := s.Insert(ctx, today); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if expected := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC); !today.RecordedOn.Equal(expected) {
		t.Errorf("RecordedOn = %v, expected %v", today.RecordedOn, expected)
	}
	edge := &metric.Record{UserID: "user-1", Kind: "panic_attacks", RecordedOn: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)}
	if err := s.Insert(ctx, edge); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	old := &metric.Record{UserID: "user-1", Kind: "panic_attacks", RecordedOn: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)}
	if err := s.Insert(ctx, old); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	tests := []struct {
		days     int
		expected int
	}{
		{0, 1},
		{6, 2},
		{7, 3},
	}
	for _, tt := range tests {
		n, err := s.Count(ctx, "user-1", "panic_attacks", metric.SinceDays(tt.days))
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != tt.expected {
			t.Errorf("Count(since %d days) = %d, expected %d", tt.days, n, tt.expected)
		}
	}
}

func TestStreak(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, daysAgo := range []int{0, 0, 1, 2, 3, 5} {
		insert(t, s, "user-1", "daily_moods", daysAgo, nil)
	}
	for _, daysAgo := range []int{2, 3} {
		insert(t, s, "user-1", "breathing_records", daysAgo, nil)
	}

	got, err := s.Streak(ctx, "user-1", "daily_moods")
	if err != nil {
		t.Fatalf("Streak() error = %v", err)
	}
	if got != 4 {
		t.Errorf("Streak(daily_moods) = %d, expected 4", got)
	}

	got, err = s.Streak(ctx, "user-1", "breathing_records")
	if err != nil {
		t.Fatalf("Streak() error = %v", err)
	}
	if got != 0 {
		t.Errorf("Streak(breathing_records) = %d, expected 0 for a lapsed run", got)
	}
}

func TestConsecutiveDays(t *testing.T) {
	today := dateOnly(fixedNow)
	day := func(n int) time.Time { return today.AddDate(0, 0, -n) }

	tests := []struct {
		name     string
		days     []time.Time
		expected int
	}{
		{name: "empty", days: nil, expected: 0},
		{name: "today only", days: []time.Time{day(0)}, expected: 1},
		{name: "ending yesterday", days: []time.Time{day(1), day(2), day(3)}, expected: 3},
		{name: "gap", days: []time.Time{day(0), day(1), day(3)}, expected: 2},
		{name: "lapsed", days: []time.Time{day(2), day(3)}, expected: 0},
		{name: "future ignored", days: []time.Time{day(-1), day(0), day(1)}, expected: 2},
		{name: "seven days", days: []time.Time{day(0), day(1), day(2), day(3), day(4), day(5), day(6)}, expected: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := consecutiveDays(tt.days, today); got != tt.expected {
				t.Errorf("consecutiveDays() = %d, expected %d", got, tt.expected)
			}
		})
	}
}
