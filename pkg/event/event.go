// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package event defines the notifications the progression engine emits for a
// presentation layer. Events carry everything needed to render a toast or a
// celebration without another query.
package event

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Type identifies an event.
type Type string

const (
	TypeXPGained        Type = "xp_gained"
	TypeLevelUp         Type = "level_up"
	TypePhaseComplete   Type = "phase_complete"
	TypeProgramComplete Type = "program_complete"
	TypePhaseBlocked    Type = "phase_blocked"
	TypeAccessBlocked   Type = "access_blocked"
	TypeBadgeUnlocked   Type = "badge_unlocked"
	TypeModeChanged     Type = "mode_changed"
)

// Event is a notification for one user.
type Event struct {
	Type        Type      `json:"type"`
	UserID      string    `json:"userId"`
	Timestamp   time.Time `json:"timestamp"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`

	Amount     int      `json:"amount,omitempty"`
	Total      int      `json:"total,omitempty"`
	Level      int      `json:"level,omitempty"`
	Phase      int      `json:"phase"`
	NextPhase  int      `json:"nextPhase,omitempty"`
	ActivityID *int     `json:"activityId,omitempty"`
	BadgeID    string   `json:"badgeId,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Unmet      []string `json:"unmet,omitempty"`
	GuidedMode *bool    `json:"guidedMode,omitempty"`
}

// Publisher delivers events to whatever renders them.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emit stamps and publishes an event. Delivery failures are logged and never
// fail the operation that produced the event.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := p.Publish(ctx, e); err != nil {
		logrus.Warnf("failed to publish %s event for user %s: %v", e.Type, e.UserID, err)
	}
}
