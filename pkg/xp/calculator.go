// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package xp owns a user's experience total and the level derived from it.
package xp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-guided-progression/pkg/event"
	"github.com/AccelByte/extend-guided-progression/pkg/metrics"
	"github.com/AccelByte/extend-guided-progression/pkg/rules"
	"github.com/AccelByte/extend-guided-progression/pkg/service"
)

var (
	// ErrInvalidAmount is returned for awards that are not a positive integer.
	ErrInvalidAmount = errors.New("xp amount must be positive")

	// ErrUnknownReason is returned when a reason code has no entry in the reward table.
	ErrUnknownReason = errors.New("reason code has no xp reward")
)

// AwardResult is the outcome of a successful award.
type AwardResult struct {
	Amount        int
	Total         int
	Level         int
	PreviousLevel int
	LeveledUp     bool
}

// Calculator awards XP to one user. It is not safe for concurrent use; build
// one per request.
type Calculator struct {
	userID    string
	tables    *rules.Tables
	store     service.XPStore
	publisher event.Publisher
	now       func() time.Time

	current service.UserXP
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithClock overrides the clock used to stamp log entries.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// New creates a calculator for userID. Call Load before reading the total.
func New(userID string, tables *rules.Tables, store service.XPStore, publisher event.Publisher, opts ...Option) *Calculator {
	c := &Calculator{
		userID:    userID,
		tables:    tables,
		store:     store,
		publisher: publisher,
		now:       time.Now,
		current:   service.UserXP{UserID: userID, Level: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads the stored total.
func (c *Calculator) Load(ctx context.Context) error {
	row, err := c.store.GetXP(ctx, c.userID, Leveler(c.tables.Levels))
	if err != nil {
		return fmt.Errorf("failed to load xp for user %s: %w", c.userID, err)
	}
	c.current = *row
	return nil
}

// Total is the user's XP as of the last Load or Award.
func (c *Calculator) Total() int { return c.current.Total }

// Level is the level derived from Total.
func (c *Calculator) Level() int { return LevelFor(c.tables.Levels, c.current.Total) }

// LevelInfo is the table row of the current level.
func (c *Calculator) LevelInfo() rules.Level { return Info(c.tables.Levels, c.Level()) }

// XPForNextLevel is the threshold of the next level, or NoNextLevel.
func (c *Calculator) XPForNextLevel() int { return XPForNextLevel(c.tables.Levels, c.Level()) }

// ProgressToNextLevel is the percentage of the current level band earned so far.
func (c *Calculator) ProgressToNextLevel() int {
	return ProgressInLevel(c.tables.Levels, c.current.Total)
}

// Award adds amount to the user's total and appends a log entry. It emits
// xp_gained, plus level_up when the level increased. Nothing is emitted when
// the write fails.
func (c *Calculator) Award(ctx context.Context, amount int, reason string, activityID *int) (*AwardResult, error) {
	return c.apply(ctx, service.XPEntry{
		Amount:     amount,
		Reason:     reason,
		ActivityID: activityID,
	})
}

// AwardReason awards the amount the reward table lists for reason.
func (c *Calculator) AwardReason(ctx context.Context, reason string, activityID *int) (*AwardResult, error) {
	amount := c.tables.RewardXP(reason)
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReason, reason)
	}
	return c.Award(ctx, amount, reason, activityID)
}

// AwardReasonOnce is AwardReason for one-time rewards. A repeated call returns
// an error matching service.ErrAlreadyApplied and changes nothing.
func (c *Calculator) AwardReasonOnce(ctx context.Context, reason string) (*AwardResult, error) {
	amount := c.tables.RewardXP(reason)
	if amount <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReason, reason)
	}
	return c.apply(ctx, service.XPEntry{
		Amount: amount,
		Reason: reason,
		Once:   true,
	})
}

// AwardBadge pays the reward of a badge once. The log entry references the badge.
func (c *Calculator) AwardBadge(ctx context.Context, badgeID string, amount int) (*AwardResult, error) {
	return c.apply(ctx, service.XPEntry{
		Amount:  amount,
		Reason:  rules.BadgeReason(badgeID),
		BadgeID: badgeID,
		Once:    true,
	})
}

func (c *Calculator) apply(ctx context.Context, entry service.XPEntry) (*AwardResult, error) {
	amount, reason := entry.Amount, entry.Reason
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	entry.Timestamp = c.now().UTC()

	row, prevLevel, err := c.store.AddXP(ctx, c.userID, entry, Leveler(c.tables.Levels))
	if err != nil {
		return nil, fmt.Errorf("failed to award %d xp (%s): %w", amount, reason, err)
	}
	c.current = *row

	result := &AwardResult{
		Amount:        amount,
		Total:         row.Total,
		Level:         row.Level,
		PreviousLevel: prevLevel,
		LeveledUp:     row.Level > prevLevel,
	}

	metrics.XPAwardedTotal.WithLabelValues(reason).Add(float64(amount))
	event.Emit(ctx, c.publisher, event.Event{
		Type:        event.TypeXPGained,
		UserID:      c.userID,
		Title:       fmt.Sprintf("+%d XP", amount),
		Description: c.tables.ReasonLabel(reason),
		Amount:      amount,
		Total:       row.Total,
		Level:       row.Level,
		ActivityID:  entry.ActivityID,
		BadgeID:     entry.BadgeID,
		Reason:      reason,
	})

	if result.LeveledUp {
		info := Info(c.tables.Levels, row.Level)
		logrus.Infof("user %s reached level %d (%s)", c.userID, info.Level, info.Title)

		metrics.LevelUpsTotal.WithLabelValues(strconv.Itoa(info.Level)).Inc()
		event.Emit(ctx, c.publisher, event.Event{
			Type:        event.TypeLevelUp,
			UserID:      c.userID,
			Title:       info.Title,
			Description: fmt.Sprintf("Level %d", info.Level),
			Icon:        info.Icon,
			Color:       info.Color,
			Total:       row.Total,
			Level:       info.Level,
		})
	}

	return result, nil
}

// History returns up to limit of the most recent awards, oldest first.
func (c *Calculator) History(ctx context.Context, limit int) ([]service.XPEntry, error) {
	entries, err := c.store.History(ctx, c.userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read xp history for user %s: %w", c.userID, err)
	}
	return entries, nil
}
