// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package progression moves a user through the phases of the program. A phase
// is left only on an explicit request, only forward, and only when its
// completion criteria hold.
package progression

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
	"github.com/AccelByte/extend-guided-progression/pkg/xp"
)

var (
	// ErrNoProgress is returned by writes when the progress row could not be loaded.
	ErrNoProgress = errors.New("user progress is not loaded")

	// ErrUnknownPhase is returned when the stored phase has no definition.
	ErrUnknownPhase = errors.New("unknown phase")

	// ErrUnknownActivity is returned for activity ids missing from the rule tables.
	ErrUnknownActivity = errors.New("unknown activity")
)

// Awarder pays out the one-time XP of a reason code of the reward table.
type Awarder interface {
	AwardReasonOnce(ctx context.Context, reason string) (*xp.AwardResult, error)
}

// AdvanceResult is the outcome of an advance request.
type AdvanceResult struct {
	Advanced        bool
	ProgramComplete bool
	From            int
	To              int
	Unmet           []string
}

// Snapshot is a read-only view of a user's progress.
type Snapshot struct {
	Loaded              bool
	Phase               int
	PhaseTitle          string
	GuidedMode          bool
	CurrentActivity     int
	CompletedActivities []int
	PhaseCompletion     map[int]int
	ProgramComplete     bool
}

// Machine is the phase state machine of one user. It is not safe for
// concurrent use; build one per request.
type Machine struct {
	userID    string
	tables    *rules.Tables
	store     service.ProgressStore
	criteria  *CriteriaEvaluator
	awarder   Awarder
	publisher event.Publisher
	now       func() time.Time

	progress *service.UserProgress
	// guided holds the mode when progress could not be loaded
	guided bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the clock used for new rows and completion stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithAwarder sets where phase and program rewards are paid.
func WithAwarder(a Awarder) Option {
	return func(m *Machine) { m.awarder = a }
}

// NewMachine creates the state machine for userID. Call Load before use.
func NewMachine(
	userID string,
	tables *rules.Tables,
	store service.ProgressStore,
	criteria *CriteriaEvaluator,
	publisher event.Publisher,
	opts ...Option,
) *Machine {
	m := &Machine{
		userID:    userID,
		tables:    tables,
		store:     store,
		criteria:  criteria,
		publisher: publisher,
		now:       time.Now,
		guided:    true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads the user's progress, creating the default row on first access,
// and pays any reward left pending by an earlier request. On failure the
// machine keeps working with restricted access.
func (m *Machine) Load(ctx context.Context) error {
	p, err := m.store.GetProgress(ctx, m.userID)
	if errors.Is(err, service.ErrNotFound) {
		p, err = m.store.CreateProgress(ctx, service.NewUserProgress(m.userID, m.now().UTC()))
	}
	if err != nil {
		logrus.Errorf("failed to load progress for user %s: %v", m.userID, err)
		m.progress = nil
		return fmt.Errorf("failed to load progress: %w", err)
	}

	m.progress = p
	m.settle(ctx)
	return nil
}

// Loaded reports whether a progress row is available.
func (m *Machine) Loaded() bool { return m.progress != nil }

// CurrentPhase is the user's phase, or the start phase when nothing is loaded.
func (m *Machine) CurrentPhase() int {
	if m.progress == nil {
		return service.DefaultStartPhase
	}
	return m.progress.CurrentPhase
}

// GuidedMode reports whether access is gated by phase.
func (m *Machine) GuidedMode() bool {
	if m.progress == nil {
		return m.guided
	}
	return m.progress.GuidedMode
}

// CanAccessActivity reports whether the user may open an activity. The
// overview is always open and unknown activities never are.
func (m *Machine) CanAccessActivity(activityID int) bool {
	if activityID == rules.OverviewActivity {
		return true
	}
	phaseID, ok := m.tables.PhaseOfActivity(activityID)
	if !ok {
		// free mode does not open ids outside the activity table
		return false
	}

	if !m.GuidedMode() {
		return true
	}
	if phaseID <= service.DefaultStartPhase {
		return true
	}
	if m.progress == nil {
		return false
	}

	current := m.progress.CurrentPhase
	phase, ok := m.tables.Phase(phaseID)
	if !ok {
		return false
	}
	for _, prereq := range phase.Prerequisites {
		if prereq > current {
			return false
		}
	}
	return phaseID <= current
}

// CheckAccess is CanAccessActivity that also emits access_blocked on denial.
func (m *Machine) CheckAccess(ctx context.Context, activityID int) bool {
	if m.CanAccessActivity(activityID) {
		return true
	}

	current := m.CurrentPhase()
	e := event.Event{
		Type:       event.TypeAccessBlocked,
		UserID:     m.userID,
		Phase:      current,
		ActivityID: &activityID,
	}
	if phase, ok := m.tables.Phase(current); ok {
		e.Title = phase.Title
		e.Description = phase.Description
	}
	if target, ok := m.tables.PhaseOfActivity(activityID); ok {
		e.NextPhase = target
	}
	event.Emit(ctx, m.publisher, e)
	return false
}

// AdvancePhase completes the current phase if its criteria hold. Unmet
// criteria are reported in the result and leave the state unchanged.
func (m *Machine) AdvancePhase(ctx context.Context) (*AdvanceResult, error) {
	if m.progress == nil {
		return nil, ErrNoProgress
	}

	from := m.progress.CurrentPhase
	phase, ok := m.tables.Phase(from)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPhase, from)
	}

	eval := m.criteria.Evaluate(ctx, m.userID, phase)
	if !eval.Complete {
		logrus.Infof("user %s cannot leave phase %d, unmet: %v", m.userID, from, eval.Unmet)
		metrics.PhaseBlockedTotal.WithLabelValues(strconv.Itoa(from)).Inc()
		event.Emit(ctx, m.publisher, event.Event{
			Type:        event.TypePhaseBlocked,
			UserID:      m.userID,
			Title:       phase.Title,
			Description: fmt.Sprintf("Completa los requisitos de la Fase %d", from),
			Phase:       from,
			Unmet:       eval.Unmet,
		})
		return &AdvanceResult{From: from, To: from, Unmet: eval.Unmet}, nil
	}

	if from >= m.tables.TerminalPhase() {
		return m.completeProgram(ctx, phase)
	}

	to := from + 1
	next, ok := m.tables.Phase(to)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPhase, to)
	}

	reason := rules.PhaseCompleteReason(from)
	updated := m.progress.Clone()
	updated.CurrentPhase = to
	updated.PhaseCompletion[from] = 100
	m.addPending(updated, reason)
	if err := m.store.UpdateProgress(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to advance user %s past phase %d: %w", m.userID, from, err)
	}
	m.progress = updated

	logrus.Infof("user %s completed phase %d, now in phase %d", m.userID, from, to)
	metrics.PhaseAdvancesTotal.WithLabelValues(strconv.Itoa(from)).Inc()

	m.settle(ctx)
	event.Emit(ctx, m.publisher, event.Event{
		Type:        event.TypePhaseComplete,
		UserID:      m.userID,
		Title:       next.Title,
		Description: fmt.Sprintf("¡Fase %d Completada!", from),
		Amount:      m.tables.RewardXP(reason),
		Phase:       from,
		NextPhase:   to,
		Reason:      reason,
	})

	return &AdvanceResult{Advanced: true, From: from, To: to}, nil
}

// completeProgram handles a met terminal phase. The phase never moves past the
// terminal one; rewards are paid only the first time.
func (m *Machine) completeProgram(ctx context.Context, phase *rules.Phase) (*AdvanceResult, error) {
	first := m.progress.ProgramCompletedAt == nil

	if first {
		updated := m.progress.Clone()
		completedAt := m.now().UTC()
		updated.ProgramCompletedAt = &completedAt
		updated.PhaseCompletion[phase.ID] = 100
		m.addPending(updated, rules.PhaseCompleteReason(phase.ID))
		m.addPending(updated, rules.ProgramCompleteReason)
		if err := m.store.UpdateProgress(ctx, updated); err != nil {
			return nil, fmt.Errorf("failed to record program completion for user %s: %w", m.userID, err)
		}
		m.progress = updated
		logrus.Infof("user %s completed the program", m.userID)
		metrics.PhaseAdvancesTotal.WithLabelValues(strconv.Itoa(phase.ID)).Inc()
		m.settle(ctx)
	}

	event.Emit(ctx, m.publisher, event.Event{
		Type:        event.TypeProgramComplete,
		UserID:      m.userID,
		Title:       "🎉 ¡Programa Completo!",
		Description: phase.Title,
		Amount:      m.tables.RewardXP(rules.ProgramCompleteReason),
		Phase:       phase.ID,
		Reason:      rules.ProgramCompleteReason,
	})

	return &AdvanceResult{ProgramComplete: true, From: phase.ID, To: phase.ID}, nil
}

// addPending queues a table reward on p. It is written together with the
// transition that earned it and cleared once paid.
func (m *Machine) addPending(p *service.UserProgress, reason string) {
	if m.awarder == nil || m.tables.RewardXP(reason) <= 0 {
		return
	}
	for _, r := range p.PendingRewards {
		if r == reason {
			return
		}
	}
	p.PendingRewards = append(p.PendingRewards, reason)
}

// settle pays the pending rewards and clears the ones paid. Awards are applied
// once per reason, so a clear that fails only repeats a no-op later. Failures
// are logged and the reward stays pending for the next load.
func (m *Machine) settle(ctx context.Context) {
	if m.progress == nil || len(m.progress.PendingRewards) == 0 || m.awarder == nil {
		return
	}

	var remaining []string
	for _, reason := range m.progress.PendingRewards {
		_, err := m.awarder.AwardReasonOnce(ctx, reason)
		if err != nil && !errors.Is(err, service.ErrAlreadyApplied) {
			logrus.Errorf("failed to award %s to user %s, keeping it pending: %v", reason, m.userID, err)
			remaining = append(remaining, reason)
		}
	}
	if len(remaining) == len(m.progress.PendingRewards) {
		return
	}

	updated := m.progress.Clone()
	updated.PendingRewards = remaining
	if err := m.store.UpdateProgress(ctx, updated); err != nil {
		logrus.Warnf("failed to clear paid rewards for user %s: %v", m.userID, err)
		return
	}
	m.progress = updated
}

// ToggleMode switches between guided and free mode without touching the phase.
func (m *Machine) ToggleMode(ctx context.Context, enabled bool) error {
	if m.progress == nil {
		m.guided = enabled
		return nil
	}

	updated := m.progress.Clone()
	updated.GuidedMode = enabled
	if err := m.store.UpdateProgress(ctx, updated); err != nil {
		return fmt.Errorf("failed to set guided mode for user %s: %w", m.userID, err)
	}
	m.progress = updated

	title := "🗺️ Modo Libre activado"
	if enabled {
		title = "🎯 Modo Guiado activado"
	}
	event.Emit(ctx, m.publisher, event.Event{
		Type:       event.TypeModeChanged,
		UserID:     m.userID,
		Title:      title,
		Phase:      updated.CurrentPhase,
		GuidedMode: &enabled,
	})
	return nil
}

// RecordVisit moves the activity pointer and marks the activity as done.
func (m *Machine) RecordVisit(ctx context.Context, activityID int) error {
	if m.progress == nil {
		return ErrNoProgress
	}
	if _, ok := m.tables.Activity(activityID); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownActivity, activityID)
	}
	if m.progress.CurrentActivity == activityID && m.progress.HasCompletedActivity(activityID) {
		return nil
	}

	updated := m.progress.Clone()
	updated.MarkActivity(activityID)
	if err := m.store.UpdateProgress(ctx, updated); err != nil {
		return fmt.Errorf("failed to record visit of activity %d for user %s: %w", activityID, m.userID, err)
	}
	m.progress = updated
	return nil
}

// Snapshot returns a copy of the user's progress.
func (m *Machine) Snapshot() Snapshot {
	if m.progress == nil {
		return Snapshot{
			Phase:               service.DefaultStartPhase,
			GuidedMode:          m.guided,
			CompletedActivities: []int{},
			PhaseCompletion:     map[int]int{},
			PhaseTitle:          m.phaseTitle(service.DefaultStartPhase),
		}
	}

	p := m.progress.Clone()
	return Snapshot{
		Loaded:              true,
		Phase:               p.CurrentPhase,
		PhaseTitle:          m.phaseTitle(p.CurrentPhase),
		GuidedMode:          p.GuidedMode,
		CurrentActivity:     p.CurrentActivity,
		CompletedActivities: p.CompletedActivities,
		PhaseCompletion:     p.PhaseCompletion,
		ProgramComplete:     p.ProgramCompletedAt != nil,
	}
}

// PhaseCompletion returns how far the user is through phase, in percent.
// Phases already left report their recorded completion.
func (m *Machine) PhaseCompletion(ctx context.Context, phaseID int) (int, error) {
	phase, ok := m.tables.Phase(phaseID)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPhase, phaseID)
	}
	if m.progress != nil {
		if pct, ok := m.progress.PhaseCompletion[phaseID]; ok && pct >= 100 {
			return 100, nil
		}
	}
	return m.criteria.Evaluate(ctx, m.userID, phase).Percent(), nil
}

func (m *Machine) phaseTitle(id int) string {
	if phase, ok := m.tables.Phase(id); ok {
		return phase.Title
	}
	return ""
}
