// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

// levelEvery100 is a stand-in level table: one level per 100 XP
func levelEvery100(total int) int {
	return total/100 + 1
}

func TestProgressStore_GetMissing(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := NewRedisProgressStore(client)
	_, err := store.GetProgress(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProgress() error = %v, expected ErrNotFound", err)
	}
}

func TestProgressStore_CreateIsInsertIfAbsent(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisProgressStore(client)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	first := NewUserProgress("user-1", now)
	first.CurrentPhase = 3
	if _, err := store.CreateProgress(ctx, first); err != nil {
		t.Fatalf("CreateProgress() error = %v", err)
	}

	// a second create must not clobber the stored row
	second := NewUserProgress("user-1", now)
	got, err := store.CreateProgress(ctx, second)
	if err != nil {
		t.Fatalf("CreateProgress() error = %v", err)
	}
	if got.CurrentPhase != 3 {
		t.Errorf("CurrentPhase = %d, expected 3 from the existing row", got.CurrentPhase)
	}
	if got.PhaseCompletion == nil {
		t.Error("PhaseCompletion should be non-nil after decode")
	}
}

func TestProgressStore_UpdateVersionCheck(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisProgressStore(client)

	created, err := store.CreateProgress(ctx, NewUserProgress("user-1", time.Now()))
	if err != nil {
		t.Fatalf("CreateProgress() error = %v", err)
	}

	a, _ := store.GetProgress(ctx, "user-1")
	b, _ := store.GetProgress(ctx, "user-1")

	a.CurrentPhase = 2
	if err := store.UpdateProgress(ctx, a); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if a.Version != created.Version+1 {
		t.Errorf("Version = %d, expected %d", a.Version, created.Version+1)
	}

	// b was read before a's write
	b.GuidedMode = false
	if err := store.UpdateProgress(ctx, b); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale UpdateProgress() error = %v, expected ErrConflict", err)
	}

	stored, _ := store.GetProgress(ctx, "user-1")
	if stored.CurrentPhase != 2 || !stored.GuidedMode {
		t.Errorf("stored row = phase %d guided %v, expected phase 2 guided true", stored.CurrentPhase, stored.GuidedMode)
	}
}

func TestProgressStore_UpdateMissing(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := NewRedisProgressStore(client)
	err := store.UpdateProgress(context.Background(), NewUserProgress("ghost", time.Now()))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateProgress() error = %v, expected ErrNotFound", err)
	}
}

func TestXPStore_AddAndHistory(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisXPStore(client)

	empty, err := store.GetXP(ctx, "user-1", levelEvery100)
	if err != nil {
		t.Fatalf("GetXP() error = %v", err)
	}
	if empty.Total != 0 || empty.Level != 1 {
		t.Errorf("new user xp = %+v, expected total 0 level 1", empty)
	}

	activity := 4
	awards := []XPEntry{
		{Amount: 60, Reason: "daily_mood_registered"},
		{Amount: 50, Reason: "breathing_exercise", ActivityID: &activity},
		{Amount: 10, Reason: "daily_mood_registered"},
	}

	var prevLevels []int
	for _, e := range awards {
		_, prev, err := store.AddXP(ctx, "user-1", e, levelEvery100)
		if err != nil {
			t.Fatalf("AddXP() error = %v", err)
		}
		prevLevels = append(prevLevels, prev)
	}

	xp, _ := store.GetXP(ctx, "user-1", levelEvery100)
	if xp.Total != 120 || xp.Level != 2 {
		t.Errorf("xp = %+v, expected total 120 level 2", xp)
	}
	if prevLevels[1] != 1 || prevLevels[2] != 2 {
		t.Errorf("previous levels = %v, expected [1 1 2]", prevLevels)
	}

	history, err := store.History(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(History) = %d, expected 2", len(history))
	}
	if history[0].Reason != "breathing_exercise" || history[0].ActivityID == nil || *history[0].ActivityID != 4 {
		t.Errorf("history[0] = %+v, expected the breathing award", history[0])
	}

	all, _ := store.History(ctx, "user-1", 0)
	if len(all) != 3 {
		t.Errorf("len(History(0)) = %d, expected 3", len(all))
	}
}

func TestXPStore_ConcurrentAwardsAreNotLost(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisXPStore(client)

	const writers = 5
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := store.AddXP(ctx, "user-1", XPEntry{Amount: 25, Reason: "daily_mood_registered"}, levelEvery100); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("AddXP() error = %v", err)
	}

	xp, _ := store.GetXP(ctx, "user-1", levelEvery100)
	if xp.Total != writers*25 {
		t.Errorf("Total = %d, expected %d", xp.Total, writers*25)
	}
	history, _ := store.History(ctx, "user-1", 0)
	if len(history) != writers {
		t.Errorf("len(History) = %d, expected %d", len(history), writers)
	}
}

func TestXPStore_OverflowIsRejected(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisXPStore(client)
	if _, _, err := store.AddXP(ctx, "user-1", XPEntry{Amount: 500, Reason: "manual"}, levelEvery100); err != nil {
		t.Fatalf("AddXP() error = %v", err)
	}

	_, _, err := store.AddXP(ctx, "user-1", XPEntry{Amount: math.MaxInt, Reason: "manual"}, levelEvery100)
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("AddXP(MaxInt) error = %v, expected ErrOverflow", err)
	}

	xp, _ := store.GetXP(ctx, "user-1", levelEvery100)
	if xp.Total != 500 {
		t.Errorf("Total = %d, expected 500", xp.Total)
	}
	history, _ := store.History(ctx, "user-1", 0)
	if len(history) != 1 {
		t.Errorf("len(History) = %d, expected 1", len(history))
	}
}

func TestXPStore_OnceIsAppliedOnce(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisXPStore(client)
	entry := XPEntry{Amount: 30, Reason: "badge_first_mood", BadgeID: "first_mood", Once: true}

	if _, _, err := store.AddXP(ctx, "user-1", entry, levelEvery100); err != nil {
		t.Fatalf("AddXP() error = %v", err)
	}
	_, _, err := store.AddXP(ctx, "user-1", entry, levelEvery100)
	if !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("repeat AddXP() error = %v, expected ErrAlreadyApplied", err)
	}

	// plain awards with the same reason are not deduplicated
	if _, _, err := store.AddXP(ctx, "user-1", XPEntry{Amount: 30, Reason: "badge_first_mood"}, levelEvery100); err != nil {
		t.Fatalf("AddXP() error = %v", err)
	}
	// another user is paid independently
	if _, _, err := store.AddXP(ctx, "user-2", entry, levelEvery100); err != nil {
		t.Fatalf("AddXP(user-2) error = %v", err)
	}

	xp, _ := store.GetXP(ctx, "user-1", levelEvery100)
	if xp.Total != 60 {
		t.Errorf("Total = %d, expected 60", xp.Total)
	}
	history, _ := store.History(ctx, "user-1", 0)
	if len(history) != 2 || history[0].BadgeID != "first_mood" {
		t.Errorf("history = %+v, expected two entries, the first referencing first_mood", history)
	}
}

func TestBadgeStore_Remove(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisBadgeStore(client)
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	if _, err := store.InsertBadge(ctx, "user-1", UserBadge{BadgeID: "first_mood", UnlockedAt: t0}); err != nil {
		t.Fatalf("InsertBadge() error = %v", err)
	}
	if err := store.RemoveBadge(ctx, "user-1", "first_mood"); err != nil {
		t.Fatalf("RemoveBadge() error = %v", err)
	}
	if err := store.RemoveBadge(ctx, "user-1", "never_held"); err != nil {
		t.Errorf("RemoveBadge(never_held) error = %v, expected nil", err)
	}

	created, err := store.InsertBadge(ctx, "user-1", UserBadge{BadgeID: "first_mood", UnlockedAt: t0.Add(time.Hour)})
	if err != nil || !created {
		t.Errorf("InsertBadge() after removal = %v, %v, expected true, nil", created, err)
	}
}

func TestBadgeStore_InsertIsIdempotent(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewRedisBadgeStore(client)
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	created, err := store.InsertBadge(ctx, "user-1", UserBadge{BadgeID: "first_mood", UnlockedAt: t0.Add(time.Hour)})
	if err != nil || !created {
		t.Fatalf("InsertBadge() = %v, %v, expected true, nil", created, err)
	}

	created, err = store.InsertBadge(ctx, "user-1", UserBadge{BadgeID: "first_mood", UnlockedAt: t0.Add(2 * time.Hour)})
	if err != nil || created {
		t.Fatalf("repeat InsertBadge() = %v, %v, expected false, nil", created, err)
	}

	if _, err := store.InsertBadge(ctx, "user-1", UserBadge{BadgeID: "breathing_starter", UnlockedAt: t0}); err != nil {
		t.Fatalf("InsertBadge() error = %v", err)
	}

	badges, err := store.ListBadges(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListBadges() error = %v", err)
	}
	if len(badges) != 2 {
		t.Fatalf("len(ListBadges) = %d, expected 2", len(badges))
	}
	if badges[0].BadgeID != "breathing_starter" {
		t.Errorf("badges[0] = %s, expected breathing_starter (oldest first)", badges[0].BadgeID)
	}
	if !badges[1].UnlockedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("first_mood unlocked at %v, expected the original unlock time", badges[1].UnlockedAt)
	}
}

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("retries conflicts until success", func(t *testing.T) {
		attempts := 0
		err := RetryOnConflict(ctx, func() error {
			attempts++
			if attempts < 3 {
				return ErrConflict
			}
			return nil
		})
		if err != nil {
			t.Fatalf("RetryOnConflict() error = %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, expected 3", attempts)
		}
	})

	t.Run("stops on other errors", func(t *testing.T) {
		boom := errors.New("boom")
		attempts := 0
		err := RetryOnConflict(ctx, func() error {
			attempts++
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("RetryOnConflict() error = %v, expected boom", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, expected 1", attempts)
		}
	})

	t.Run("gives up with ErrConflict", func(t *testing.T) {
		err := RetryOnConflict(ctx, func() error { return ErrConflict })
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("RetryOnConflict() error = %v, expected ErrConflict", err)
		}
	})
}
