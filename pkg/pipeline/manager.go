// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package pipeline builds the per-user progression context and routes user
// actions through it:
//
//	Activity → Record → XP → Badges → Progress
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-guided-progression/pkg/badge"
	"github.com/AccelByte/extend-guided-progression/pkg/event"
	"github.com/AccelByte/extend-guided-progression/pkg/metric"
	"github.com/AccelByte/extend-guided-progression/pkg/metrics"
	"github.com/AccelByte/extend-guided-progression/pkg/progression"
	"github.com/AccelByte/extend-guided-progression/pkg/rules"
	"github.com/AccelByte/extend-guided-progression/pkg/service"
	"github.com/AccelByte/extend-guided-progression/pkg/xp"
)

var (
	// ErrMissingUser is returned when a session is opened without a user id.
	ErrMissingUser = errors.New("user id is required")

	// ErrAccessDenied is returned when guided mode locks the activity.
	ErrAccessDenied = errors.New("activity is locked in guided mode")

	// ErrNoRecordKind is returned for activities that do not save records.
	ErrNoRecordKind = errors.New("activity does not record entries")
)

// recentHistory is how many XP log entries a snapshot carries.
const recentHistory = 10

// Stores groups the entity stores a session writes to.
type Stores struct {
	Progress service.ProgressStore
	XP       service.XPStore
	Badges   service.BadgeStore
}

// Manager opens per-user sessions over shared stores and rule tables.
type Manager struct {
	tables    *rules.Tables
	stores    Stores
	accessor  metric.Accessor
	recorder  metric.Recorder
	publisher event.Publisher
	granter   service.EntitlementGranter
	now       func() time.Time
	logger    *logrus.Entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithGranter grants badge reward items through the platform.
func WithGranter(g service.EntitlementGranter) Option {
	return func(m *Manager) { m.granter = g }
}

// WithClock overrides the clock passed to every session component.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager with all required components.
func NewManager(
	tables *rules.Tables,
	stores Stores,
	accessor metric.Accessor,
	recorder metric.Recorder,
	publisher event.Publisher,
	logger *logrus.Entry,
	opts ...Option,
) *Manager {
	if logger == nil {
		logger = logrus.WithField("component", "pipeline")
	}
	if publisher == nil {
		publisher = event.Discard{}
	}

	m := &Manager{
		tables:    tables,
		stores:    stores,
		accessor:  accessor,
		recorder:  recorder,
		publisher: publisher,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tables returns the rule tables sessions are evaluated against.
func (m *Manager) Tables() *rules.Tables { return m.tables }

// Session is the progression context of one user for one request.
type Session struct {
	UserID      string
	Progression *progression.Machine
	XP          *xp.Calculator
	Badges      *badge.Evaluator

	manager *Manager
	logger  *logrus.Entry
}

// Open builds and loads the context objects of userID. A progress read failure
// is tolerated and leaves the session with restricted access.
func (m *Manager) Open(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	logger := m.logger.WithField("user_id", userID)

	calc := xp.New(userID, m.tables, m.stores.XP, m.publisher, xp.WithClock(m.now))
	machine := progression.NewMachine(
		userID,
		m.tables,
		m.stores.Progress,
		progression.NewCriteriaEvaluator(m.tables, m.accessor),
		m.publisher,
		progression.WithAwarder(calc),
		progression.WithClock(m.now),
	)
	badges := badge.New(
		userID,
		m.tables,
		m.stores.Badges,
		m.accessor,
		m.publisher,
		badge.WithAwarder(calc),
		badge.WithGranter(m.granter),
		badge.WithPhaseReader(machine),
		badge.WithClock(m.now),
	)

	if err := machine.Load(ctx); err != nil {
		logger.Warnf("continuing without progress: %v", err)
	}
	if err := calc.Load(ctx); err != nil {
		return nil, err
	}
	if err := badges.Load(ctx); err != nil {
		return nil, err
	}

	return &Session{
		UserID:      userID,
		Progression: machine,
		XP:          calc,
		Badges:      badges,
		manager:     m,
		logger:      logger,
	}, nil
}

// ActivityInput is a record saved on an activity screen.
type ActivityInput struct {
	ActivityID int
	Date       time.Time
	Fields     map[string]interface{}
}

// ActivityResult is what saving a record earned.
type ActivityResult struct {
	RecordID string
	Award    *xp.AwardResult
	Unlocked []string
}

// RecordActivity saves a record, pays the activity reward, checks the badges
// that read the record kind and moves the progress pointer. Only the record
// insert can fail the call; later steps are logged.
func (s *Session) RecordActivity(ctx context.Context, in ActivityInput) (*ActivityResult, error) {
	tables := s.manager.tables

	activity, ok := tables.Activity(in.ActivityID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", progression.ErrUnknownActivity, in.ActivityID)
	}
	if activity.Kind == "" {
		return nil, fmt.Errorf("%w: %d", ErrNoRecordKind, in.ActivityID)
	}
	if !s.Progression.CheckAccess(ctx, in.ActivityID) {
		return nil, fmt.Errorf("%w: %d", ErrAccessDenied, in.ActivityID)
	}

	record := &metric.Record{
		UserID:     s.UserID,
		Kind:       activity.Kind,
		RecordedOn: in.Date,
		Fields:     in.Fields,
	}
	if err := s.manager.recorder.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save %s record: %w", activity.Kind, err)
	}
	metrics.ActivitiesRecordedTotal.WithLabelValues(activity.Kind).Inc()
	s.logger.Infof("recorded %s on activity %d", activity.Kind, activity.ID)

	result := &ActivityResult{RecordID: record.ID}

	if activity.Reward != "" {
		activityID := activity.ID
		award, err := s.XP.AwardReason(ctx, activity.Reward, &activityID)
		if err != nil {
			s.logger.Errorf("failed to award %s: %v", activity.Reward, err)
		}
		result.Award = award
	}

	unlocked, err := s.Badges.CheckForKind(ctx, activity.Kind)
	if err != nil {
		s.logger.Errorf("badge check after %s record failed: %v", activity.Kind, err)
	}
	result.Unlocked = unlocked

	if err := s.Progression.RecordVisit(ctx, activity.ID); err != nil && !errors.Is(err, progression.ErrNoProgress) {
		s.logger.Warnf("failed to record visit of activity %d: %v", activity.ID, err)
	}

	return result, nil
}

// AdvancePhase tries to complete the current phase and checks the phase
// badges when it did.
func (s *Session) AdvancePhase(ctx context.Context) (*progression.AdvanceResult, []string, error) {
	result, err := s.Progression.AdvancePhase(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !result.Advanced && !result.ProgramComplete {
		return result, nil, nil
	}

	unlocked, err := s.Badges.CheckPhaseBadges(ctx)
	if err != nil {
		s.logger.Errorf("phase badge check failed: %v", err)
	}
	return result, unlocked, nil
}

// CheckBadges checks one badge, or every badge when id is empty.
func (s *Session) CheckBadges(ctx context.Context, id string) ([]string, error) {
	if id == "" {
		return s.Badges.CheckAll(ctx)
	}

	unlocked, err := s.Badges.CheckBadge(ctx, id)
	if unlocked {
		return []string{id}, err
	}
	return nil, err
}

// Snapshot is a read-only summary of a user's progression.
type Snapshot struct {
	Progress            progression.Snapshot
	CurrentPhasePercent int

	XP            int
	Level         rules.Level
	NextLevelXP   int
	LevelProgress int
	RecentXP      []service.XPEntry

	BadgeProgress badge.Progress
	Categories    []badge.Category
	Unlocked      []service.UserBadge
}

// Snapshot collects the user's phase, XP and badges.
func (s *Session) Snapshot(ctx context.Context) (*Snapshot, error) {
	progress := s.Progression.Snapshot()

	percent, err := s.Progression.PhaseCompletion(ctx, progress.Phase)
	if err != nil {
		s.logger.Warnf("failed to compute completion of phase %d: %v", progress.Phase, err)
	}

	history, err := s.XP.History(ctx, recentHistory)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Progress:            progress,
		CurrentPhasePercent: percent,
		XP:                  s.XP.Total(),
		Level:               s.XP.LevelInfo(),
		NextLevelXP:         s.XP.XPForNextLevel(),
		LevelProgress:       s.XP.ProgressToNextLevel(),
		RecentXP:            history,
		BadgeProgress:       s.Badges.Progress(),
		Categories:          s.Badges.ByCategory(),
		Unlocked:            s.Badges.Unlocked(),
	}, nil
}
