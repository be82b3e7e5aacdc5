// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package badge unlocks one-time achievements when their predicates over a
// user's activity aggregates first hold.
package badge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-guided-progression/pkg/event"
	"github.com/AccelByte/extend-guided-progression/pkg/metric"
	"github.com/AccelByte/extend-guided-progression/pkg/metrics"
	"github.com/AccelByte/extend-guided-progression/pkg/rules"
	"github.com/AccelByte/extend-guided-progression/pkg/service"
	"github.com/AccelByte/extend-guided-progression/pkg/xp"
)

// Awarder pays out badge rewards at most once per badge.
type Awarder interface {
	AwardBadge(ctx context.Context, badgeID string, amount int) (*xp.AwardResult, error)
}

// Progress summarizes how many badges are unlocked.
type Progress struct {
	Unlocked int
	Total    int
	Percent  int
}

// Status is a badge definition together with the user's unlock state.
type Status struct {
	ID          string
	Name        string
	Icon        string
	Description string
	XP          int
	Unlocked    bool
	UnlockedAt  *time.Time
}

// Category is the badges of one category in table order.
type Category struct {
	Name   string
	Badges []Status
}

// Evaluator owns the unlocked badge set of one user. It is not safe for
// concurrent use; build one per request.
type Evaluator struct {
	userID    string
	tables    *rules.Tables
	store     service.BadgeStore
	accessor  metric.Accessor
	publisher event.Publisher
	awarder   Awarder
	granter   service.EntitlementGranter
	phases    PhaseReader
	now       func() time.Time

	unlocked map[string]service.UserBadge
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithAwarder sets where badge XP is paid.
func WithAwarder(a Awarder) Option {
	return func(e *Evaluator) { e.awarder = a }
}

// WithGranter grants the platform item of badges that name one.
func WithGranter(g service.EntitlementGranter) Option {
	return func(e *Evaluator) { e.granter = g }
}

// WithPhaseReader supplies the phase for phase predicates.
func WithPhaseReader(r PhaseReader) Option {
	return func(e *Evaluator) { e.phases = r }
}

// WithClock overrides the clock used for unlock stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// New creates a badge evaluator for userID. Call Load before use.
func New(
	userID string,
	tables *rules.Tables,
	store service.BadgeStore,
	accessor metric.Accessor,
	publisher event.Publisher,
	opts ...Option,
) *Evaluator {
	e := &Evaluator{
		userID:    userID,
		tables:    tables,
		store:     store,
		accessor:  accessor,
		publisher: publisher,
		now:       time.Now,
		unlocked:  make(map[string]service.UserBadge),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load reads the unlocked set.
func (e *Evaluator) Load(ctx context.Context) error {
	badges, err := e.store.ListBadges(ctx, e.userID)
	if err != nil {
		return fmt.Errorf("failed to load badges for user %s: %w", e.userID, err)
	}

	e.unlocked = make(map[string]service.UserBadge, len(badges))
	for _, b := range badges {
		e.unlocked[b.BadgeID] = b
	}
	return nil
}

// HasBadge reports whether the user holds the badge.
func (e *Evaluator) HasBadge(id string) bool {
	_, ok := e.unlocked[id]
	return ok
}

// CheckBadge unlocks the badge if its predicate holds. It reports true only
// for a new unlock. Predicate read failures are logged and read as false.
func (e *Evaluator) CheckBadge(ctx context.Context, id string) (bool, error) {
	b, ok := e.tables.Badge(id)
	if !ok {
		logrus.Debugf("ignoring check of unknown badge %s", id)
		return false, nil
	}
	if e.HasBadge(id) {
		return false, nil
	}

	ok, err := e.holds(ctx, b.Predicate)
	if err != nil {
		logrus.Errorf("failed to evaluate badge %s for user %s: %v", id, e.userID, err)
		metrics.MetricReadErrorsTotal.WithLabelValues("badge").Inc()
		return false, nil
	}
	if !ok {
		return false, nil
	}

	return e.unlock(ctx, b)
}

// unlock stores the badge, pays its reward and then announces it. A failed
// reward removes the badge again so a later check can retry the whole unlock.
func (e *Evaluator) unlock(ctx context.Context, b *rules.Badge) (bool, error) {
	row := service.UserBadge{
		BadgeID:     b.ID,
		UnlockedAt:  e.now().UTC(),
		Name:        b.Name,
		Icon:        b.Icon,
		Description: b.Description,
	}

	created, err := e.store.InsertBadge(ctx, e.userID, row)
	if err != nil {
		return false, fmt.Errorf("failed to unlock badge %s for user %s: %w", b.ID, e.userID, err)
	}
	e.unlocked[b.ID] = row
	if !created {
		// another request unlocked it first and pays the reward
		return false, nil
	}

	if err := e.payReward(ctx, b); err != nil {
		delete(e.unlocked, b.ID)
		if rmErr := e.store.RemoveBadge(ctx, e.userID, b.ID); rmErr != nil {
			logrus.Errorf("failed to roll back badge %s for user %s: %v", b.ID, e.userID, rmErr)
		}
		return false, fmt.Errorf("failed to pay reward of badge %s: %w", b.ID, err)
	}

	if b.RewardItemID != "" && e.granter != nil {
		if err := e.granter.GrantEntitlement(ctx, e.userID, b.RewardItemID, 1); err != nil {
			logrus.Errorf("failed to grant item %s for badge %s to user %s: %v", b.RewardItemID, b.ID, e.userID, err)
		}
	}

	metrics.BadgesUnlockedTotal.WithLabelValues(b.ID, b.Category).Inc()
	event.Emit(ctx, e.publisher, event.Event{
		Type:        event.TypeBadgeUnlocked,
		UserID:      e.userID,
		Title:       b.Name,
		Description: b.Description,
		Icon:        b.Icon,
		Amount:      b.XP,
		BadgeID:     b.ID,
		Reason:      rules.BadgeReason(b.ID),
	})
	return true, nil
}

func (e *Evaluator) payReward(ctx context.Context, b *rules.Badge) error {
	if b.XP <= 0 || e.awarder == nil {
		return nil
	}
	_, err := e.awarder.AwardBadge(ctx, b.ID, b.XP)
	if errors.Is(err, service.ErrAlreadyApplied) {
		logrus.Warnf("badge %s reward was already paid to user %s", b.ID, e.userID)
		return nil
	}
	return err
}

// CheckAll checks every badge in table order and returns the new unlocks.
// A failed write does not stop the remaining checks.
func (e *Evaluator) CheckAll(ctx context.Context) ([]string, error) {
	return e.checkMatching(ctx, func(*rules.Badge) bool { return true })
}

// CheckForKind checks only the badges whose predicates read records of kind.
func (e *Evaluator) CheckForKind(ctx context.Context, kind string) ([]string, error) {
	return e.checkMatching(ctx, func(b *rules.Badge) bool { return e.reads(b.Predicate, kind) })
}

// CheckPhaseBadges checks the badges that depend on the user's phase.
func (e *Evaluator) CheckPhaseBadges(ctx context.Context) ([]string, error) {
	return e.checkMatching(ctx, func(b *rules.Badge) bool {
		return b.Predicate.Kind == rules.PredicatePhaseAtLeast
	})
}

func (e *Evaluator) checkMatching(ctx context.Context, match func(*rules.Badge) bool) ([]string, error) {
	var (
		unlocked []string
		errs     []error
	)
	for i := range e.tables.Badges {
		b := &e.tables.Badges[i]
		if !match(b) {
			continue
		}
		ok, err := e.CheckBadge(ctx, b.ID)
		if ok {
			unlocked = append(unlocked, b.ID)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return unlocked, errors.Join(errs...)
}

// Progress is the unlocked share of all defined badges.
func (e *Evaluator) Progress() Progress {
	p := Progress{Total: len(e.tables.Badges)}
	for i := range e.tables.Badges {
		if e.HasBadge(e.tables.Badges[i].ID) {
			p.Unlocked++
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Unlocked) * 100 / float64(p.Total)))
	}
	return p
}

// ByCategory groups every badge by category, in table order, with its unlock state.
func (e *Evaluator) ByCategory() []Category {
	groups := make([]Category, 0, len(e.tables.Categories))
	index := make(map[string]int, len(e.tables.Categories))
	for _, name := range e.tables.Categories {
		index[name] = len(groups)
		groups = append(groups, Category{Name: name})
	}

	for i := range e.tables.Badges {
		b := &e.tables.Badges[i]
		s := Status{
			ID:          b.ID,
			Name:        b.Name,
			Icon:        b.Icon,
			Description: b.Description,
			XP:          b.XP,
		}
		if row, ok := e.unlocked[b.ID]; ok {
			at := row.UnlockedAt
			s.Unlocked = true
			s.UnlockedAt = &at
		}
		g := index[b.Category]
		groups[g].Badges = append(groups[g].Badges, s)
	}
	return groups
}

// Unlocked returns the user's badges, oldest first, with their unlock snapshots.
func (e *Evaluator) Unlocked() []service.UserBadge {
	out := make([]service.UserBadge, 0, len(e.unlocked))
	for _, b := range e.unlocked {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].BadgeID < out[j].BadgeID
		}
		return out[i].UnlockedAt.Before(out[j].UnlockedAt)
	})
	return out
}
