// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package badge

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/AccelByte/extend-guided-progression/pkg/event"
	"github.com/AccelByte/extend-guided-progression/pkg/metric"
	metricmock "github.com/AccelByte/extend-guided-progression/pkg/metric/mock"
	"github.com/AccelByte/extend-guided-progression/pkg/rules"
	"github.com/AccelByte/extend-guided-progression/pkg/service"
	"github.com/AccelByte/extend-guided-progression/pkg/service/mock"
	"github.com/AccelByte/extend-guided-progression/pkg/xp"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type stubPhases struct {
	loaded bool
	phase  int
}

func (s stubPhases) Loaded() bool      { return s.loaded }
func (s stubPhases) CurrentPhase() int { return s.phase }

type fixture struct {
	tables   *rules.Tables
	accessor *metricmock.Accessor
	store    *mock.BadgeStore
	xpStore  *mock.XPStore
	granter  *mock.EntitlementGranter
	events   *event.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tables, err := rules.Default()
	if err != nil {
		t.Fatalf("rules.Default() error = %v", err)
	}
	return &fixture{
		tables:   tables,
		accessor: metricmock.NewAccessor(),
		store:    mock.NewBadgeStore(),
		xpStore:  mock.NewXPStore(),
		granter:  &mock.EntitlementGranter{},
		events:   event.NewRecorder(),
	}
}

func (f *fixture) evaluator(t *testing.T, opts ...Option) *Evaluator {
	t.Helper()
	calc := xp.New("user-1", f.tables, f.xpStore, f.events)
	opts = append([]Option{
		WithAwarder(calc),
		WithGranter(f.granter),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	e := New("user-1", f.tables, f.store, f.accessor, f.events, opts...)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return e
}

func TestCheckBadge_HalfHierarchy(t *testing.T) {
	f := newFixture(t)
	f.accessor.WithCount("agoraphobia_hierarchy", 2).WithFilteredCount("facing_agoraphobia", 1)
	e := f.evaluator(t)

	unlocked, err := e.CheckBadge(context.Background(), "half_hierarchy")
	if err != nil {
		t.Fatalf("CheckBadge() error = %v", err)
	}
	if !unlocked {
		t.Fatal("CheckBadge(half_hierarchy) = false, expected true")
	}
	if f.xpStore.Total("user-1") != 400 {
		t.Errorf("xp total = %d, expected 400", f.xpStore.Total("user-1"))
	}
	if !e.HasBadge("half_hierarchy") {
		t.Error("HasBadge() = false after unlock")
	}

	ev := f.events.OfType(event.TypeBadgeUnlocked)
	if len(ev) != 1 || ev[0].BadgeID != "half_hierarchy" || ev[0].Amount != 400 {
		t.Errorf("badge_unlocked = %+v, expected one for half_hierarchy worth 400", ev)
	}

	// all of the hierarchy needs two mastered items
	champion, _ := e.CheckBadge(context.Background(), "hierarchy_champion")
	if champion {
		t.Error("CheckBadge(hierarchy_champion) = true with 1 of 2 mastered")
	}
}

func TestCheckBadge_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.accessor.WithCount("daily_moods", 1)
	e := f.evaluator(t)

	first, _ := e.CheckBadge(ctx, "first_mood")
	second, _ := e.CheckBadge(ctx, "first_mood")
	if !first || second {
		t.Errorf("CheckBadge() twice = %v, %v, expected true, false", first, second)
	}

	// a second request that loaded before the unlock was persisted
	other := New("user-1", f.tables, f.store, f.accessor, f.events, WithAwarder(xp.New("user-1", f.tables, f.xpStore, f.events)))
	raced, err := other.CheckBadge(ctx, "first_mood")
	if err != nil || raced {
		t.Errorf("racing CheckBadge() = %v, %v, expected false, nil", raced, err)
	}
	if !other.HasBadge("first_mood") {
		t.Error("racing evaluator did not sync its local set")
	}

	rows, _ := f.store.ListBadges(ctx, "user-1")
	if len(rows) != 1 {
		t.Errorf("badge rows = %d, expected 1", len(rows))
	}
	if f.xpStore.Total("user-1") != 30 {
		t.Errorf("xp total = %d, expected one reward of 30", f.xpStore.Total("user-1"))
	}
	if got := len(f.events.OfType(event.TypeBadgeUnlocked)); got != 1 {
		t.Errorf("badge_unlocked events = %d, expected 1", got)
	}
}

func TestCheckBadge_ReadErrorIsFalse(t *testing.T) {
	f := newFixture(t)
	f.accessor.WithError("panic_attacks", errors.New("query failed"))
	e := f.evaluator(t)

	unlocked, err := e.CheckBadge(context.Background(), "first_steps")
	if err != nil || unlocked {
		t.Errorf("CheckBadge() = %v, %v, expected false, nil", unlocked, err)
	}
	if f.store.InsertCalls != 0 {
		t.Errorf("InsertCalls = %d, expected 0", f.store.InsertCalls)
	}
}

func TestCheckBadge_WriteFailure(t *testing.T) {
	f := newFixture(t)
	f.accessor.WithCount("panic_attacks", 1)
	f.store.InsertErr = errors.New("redis down")
	e := f.evaluator(t)

	unlocked, err := e.CheckBadge(context.Background(), "first_steps")
	if err == nil || unlocked {
		t.Fatalf("CheckBadge() = %v, %v, expected false and an error", unlocked, err)
	}
	if e.HasBadge("first_steps") {
		t.Error("HasBadge() = true after a failed write")
	}
	if len(f.events.Events()) != 0 {
		t.Error("events emitted for a failed unlock")
	}
}

func TestCheckBadge_UnknownOrHeld(t *testing.T) {
	f := newFixture(t)
	f.accessor.WithCount("panic_attacks", 10)
	f.store.WithBadge("user-1", service.UserBadge{BadgeID: "first_steps", UnlockedAt: fixedNow})
	e := f.evaluator(t)

	if ok, _ := e.CheckBadge(context.Background(), "no_such_badge"); ok {
		t.Error("unknown badge unlocked")
	}
	if ok, _ := e.CheckBadge(context.Background(), "first_steps"); ok {
		t.Error("held badge unlocked again")
	}
	if len(f.accessor.CountCalls) != 0 {
		t.Errorf("predicates read %d times, expected 0", len(f.accessor.CountCalls))
	}
}

func TestCheckBadge_GrantsRewardItem(t *testing.T) {
	f := newFixture(t)
	f.accessor.WithCount("breathing_records", 1)
	b, _ := f.tables.Badge("first_breath")
	b.RewardItemID = "item-calm-theme"
	e := f.evaluator(t)

	if ok, _ := e.CheckBadge(context.Background(), "first_breath"); !ok {
		t.Fatal("CheckBadge(first_breath) = false")
	}
	expected := []mock.GrantCall{{UserID: "user-1", ItemID: "item-calm-theme", Quantity: 1}}
	if !reflect.DeepEqual(f.granter.Grants, expected) {
		t.Errorf("grants = %+v, expected %+v", f.granter.Grants, expected)
	}
}

func TestCheckBadge_RewardFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.accessor.WithCount("breathing_records", 1)
	b, _ := f.tables.Badge("first_breath")
	b.RewardItemID = "item-calm-theme"
	f.xpStore.AddErr = errors.New("redis down")
	e := f.evaluator(t)

	unlocked, err := e.CheckBadge(ctx, "first_breath")
	if unlocked || err == nil {
		t.Fatalf("CheckBadge() = %v, %v, expected false and the award error", unlocked, err)
	}
	if e.HasBadge("first_breath") {
		t.Error("HasBadge() = true after the reward failed")
	}
	if rows, _ := f.store.ListBadges(ctx, "user-1"); len(rows) != 0 {
		t.Errorf("badge rows = %d, expected the unlock to be rolled back", len(rows))
	}
	if len(f.events.Events()) != 0 {
		t.Errorf("events = %+v, expected none for a failed unlock", f.events.Events())
	}
	if len(f.granter.Grants) != 0 {
		t.Errorf("grants = %+v, expected none for a failed unlock", f.granter.Grants)
	}

	f.xpStore.AddErr = nil
	unlocked, err = e.CheckBadge(ctx, "first_breath")
	if !unlocked || err != nil {
		t.Fatalf("CheckBadge() after recovery = %v, %v, expected true, nil", unlocked, err)
	}
	again, _ := e.CheckBadge(ctx, "first_breath")
	if again {
		t.Error("CheckBadge() unlocked first_breath twice")
	}

	if got := f.xpStore.Total("user-1"); got != b.XP {
		t.Errorf("xp total = %d, expected one reward of %d", got, b.XP)
	}
	if got := len(f.events.OfType(event.TypeBadgeUnlocked)); got != 1 {
		t.Errorf("badge_unlocked events = %d, expected 1", got)
	}
	if len(f.granter.Grants) != 1 {
		t.Errorf("grants = %d, expected 1", len(f.granter.Grants))
	}
}

func TestCheckBadge_RollbackFailureKeepsError(t *testing.T) {
	f := newFixture(t)
	f.accessor.WithCount("breathing_records", 1)
	f.xpStore.AddErr = errors.New("redis down")
	f.store.RemoveErr = errors.New("redis down")
	e := f.evaluator(t)

	unlocked, err := e.CheckBadge(context.Background(), "first_breath")
	if unlocked || err == nil {
		t.Errorf("CheckBadge() = %v, %v, expected false and an error", unlocked, err)
	}
	if !reflect.DeepEqual(f.store.RemoveCalls, []string{"first_breath"}) {
		t.Errorf("RemoveCalls = %v, expected [first_breath]", f.store.RemoveCalls)
	}
}

func TestCheckBadge_RewardReferencesBadge(t *testing.T) {
	f := newFixture(t)
	f.accessor.WithCount("daily_moods", 1)
	e := f.evaluator(t)

	if ok, err := e.CheckBadge(context.Background(), "first_mood"); !ok || err != nil {
		t.Fatalf("CheckBadge() = %v, %v, expected true, nil", ok, err)
	}
	if len(f.xpStore.AddCalls) != 1 {
		t.Fatalf("AddCalls = %d, expected 1", len(f.xpStore.AddCalls))
	}
	entry := f.xpStore.AddCalls[0]
	if entry.BadgeID != "first_mood" || entry.Reason != rules.BadgeReason("first_mood") || !entry.Once {
		t.Errorf("award entry = %+v, expected a one-time entry for first_mood", entry)
	}
}

func TestCheckBadge_RewardAlreadyPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.accessor.WithCount("daily_moods", 1)
	// paid before the badge row was lost
	if _, err := xp.New("user-1", f.tables, f.xpStore, nil).AwardBadge(ctx, "first_mood", 30); err != nil {
		t.Fatalf("AwardBadge() error = %v", err)
	}
	e := f.evaluator(t)

	unlocked, err := e.CheckBadge(ctx, "first_mood")
	if !unlocked || err != nil {
		t.Errorf("CheckBadge() = %v, %v, expected true, nil", unlocked, err)
	}
	if got := f.xpStore.Total("user-1"); got != 30 {
		t.Errorf("xp total = %d, expected 30", got)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name     string
		badge    string
		setup    func(a *metricmock.Accessor)
		phases   PhaseReader
		expected bool
	}{
		{
			name:     "streak below",
			badge:    "week_warrior",
			setup:    func(a *metricmock.Accessor) { a.WithStreak("daily_moods", 6) },
			expected: false,
		},
		{
			name:     "streak reached",
			badge:    "week_warrior",
			setup:    func(a *metricmock.Accessor) { a.WithStreak("daily_moods", 7) },
			expected: true,
		},
		{
			name:     "breathing streak",
			badge:    "breathing_week",
			setup:    func(a *metricmock.Accessor) { a.WithStreak("breathing_records", 9) },
			expected: true,
		},
		{
			name:     "bucketed range",
			badge:    "perfect_rhythm",
			setup:    func(a *metricmock.Accessor) { a.WithCount("breathing_records", 20).WithFilteredCount("breathing_records", 4) },
			expected: false,
		},
		{
			name:     "no panic with no records",
			badge:    "no_panic_week",
			setup:    func(a *metricmock.Accessor) {},
			expected: true,
		},
		{
			name:     "panic inside the window",
			badge:    "no_panic_week",
			setup:    func(a *metricmock.Accessor) { a.WithFilteredCount("panic_attacks", 1) },
			expected: false,
		},
		{
			name:     "mastery with empty hierarchy",
			badge:    "half_hierarchy",
			setup:    func(a *metricmock.Accessor) { a.WithFilteredCount("facing_agoraphobia", 3) },
			expected: false,
		},
		{
			name:     "phase reached",
			badge:    "phase_3_complete",
			setup:    func(a *metricmock.Accessor) {},
			phases:   stubPhases{loaded: true, phase: 4},
			expected: true,
		},
		{
			name:     "phase not reached",
			badge:    "phase_6_complete",
			setup:    func(a *metricmock.Accessor) {},
			phases:   stubPhases{loaded: true, phase: 6},
			expected: false,
		},
		{
			name:     "phase unknown",
			badge:    "phase_3_complete",
			setup:    func(a *metricmock.Accessor) {},
			phases:   stubPhases{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f.accessor)
			var opts []Option
			if tt.phases != nil {
				opts = append(opts, WithPhaseReader(tt.phases))
			}
			e := f.evaluator(t, opts...)

			got, err := e.CheckBadge(context.Background(), tt.badge)
			if err != nil {
				t.Fatalf("CheckBadge() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("CheckBadge(%s) = %v, expected %v", tt.badge, got, tt.expected)
			}
		})
	}
}

func TestNoneInWindowQueriesRecentRecords(t *testing.T) {
	f := newFixture(t)
	e := f.evaluator(t)

	if _, err := e.CheckBadge(context.Background(), "no_panic_week"); err != nil {
		t.Fatalf("CheckBadge() error = %v", err)
	}
	if len(f.accessor.CountCalls) != 1 {
		t.Fatalf("Count calls = %d, expected 1", len(f.accessor.CountCalls))
	}
	filters := f.accessor.CountCalls[0].Filters
	if len(filters) != 1 || filters[0].Op != metric.OpSinceDays || filters[0].Value != 7 {
		t.Errorf("filters = %+v, expected since_days 7", filters)
	}
}

func TestCheckForKind(t *testing.T) {
	f := newFixture(t)
	// five attacks, none at night and none this week
	f.accessor.WithCount("panic_attacks", 5).WithFilteredCount("panic_attacks", 0).WithCount("daily_moods", 1)
	e := f.evaluator(t)

	unlocked, err := e.CheckForKind(context.Background(), "panic_attacks")
	if err != nil {
		t.Fatalf("CheckForKind() error = %v", err)
	}
	expected := []string{"first_steps", "pattern_detective", "no_panic_week"}
	if !reflect.DeepEqual(unlocked, expected) {
		t.Errorf("CheckForKind() = %v, expected %v", unlocked, expected)
	}
	if e.HasBadge("first_mood") {
		t.Error("badge of another kind was checked")
	}
}

func TestCheckAll_ContinuesAfterWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.accessor.WithCount("panic_attacks", 1).WithCount("daily_moods", 1)
	f.store.InsertErr = errors.New("redis down")
	e := f.evaluator(t)

	_, err := e.CheckAll(context.Background())
	if err == nil {
		t.Fatal("CheckAll() error = nil, expected joined write errors")
	}
	if f.store.InsertCalls < 2 {
		t.Errorf("InsertCalls = %d, expected every true predicate to be tried", f.store.InsertCalls)
	}
}

func TestProgressAndCategories(t *testing.T) {
	f := newFixture(t)
	f.store.
		WithBadge("user-1", service.UserBadge{BadgeID: "first_mood", UnlockedAt: fixedNow}).
		WithBadge("user-1", service.UserBadge{BadgeID: "first_steps", UnlockedAt: fixedNow.Add(-time.Hour)})
	e := f.evaluator(t)

	p := e.Progress()
	if p.Unlocked != 2 || p.Total != len(f.tables.Badges) || p.Percent != 8 {
		t.Errorf("Progress() = %+v, expected 2 of %d at 8%%", p, len(f.tables.Badges))
	}

	groups := e.ByCategory()
	if len(groups) != len(f.tables.Categories) || groups[0].Name != "inicio" {
		t.Fatalf("ByCategory() = %d groups, first %q", len(groups), groups[0].Name)
	}
	for _, s := range groups[0].Badges {
		if !s.Unlocked || s.UnlockedAt == nil {
			t.Errorf("badge %s in inicio should be unlocked", s.ID)
		}
	}

	list := e.Unlocked()
	if len(list) != 2 || list[0].BadgeID != "first_steps" {
		t.Errorf("Unlocked() = %+v, expected first_steps first", list)
	}
}
