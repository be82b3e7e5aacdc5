// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"sort"
	"time"
)

// DefaultStartPhase is the phase a new user starts in.
const DefaultStartPhase = 1

// UserProgress is a user's position in the program.
// Version is bumped on every write and guards against lost updates.
type UserProgress struct {
	UserID              string      `json:"userId"`
	CurrentPhase        int         `json:"currentPhase"`
	CurrentActivity     int         `json:"currentActivity"`
	GuidedMode          bool        `json:"guidedMode"`
	CompletedActivities []int       `json:"completedActivities"`
	PhaseCompletion     map[int]int `json:"phaseCompletion"`
	ProgramCompletedAt  *time.Time  `json:"programCompletedAt,omitempty"`
	PendingRewards      []string    `json:"pendingRewards,omitempty"`
	Version             int64       `json:"version"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

// NewUserProgress returns the row created on a user's first access.
func NewUserProgress(userID string, now time.Time) *UserProgress {
	return &UserProgress{
		UserID:              userID,
		CurrentPhase:        DefaultStartPhase,
		GuidedMode:          true,
		CompletedActivities: []int{},
		PhaseCompletion:     make(map[int]int),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Clone returns a deep copy so a failed write never leaks into the cached row.
func (p *UserProgress) Clone() *UserProgress {
	c := *p
	c.CompletedActivities = append([]int(nil), p.CompletedActivities...)
	c.PendingRewards = append([]string(nil), p.PendingRewards...)
	c.PhaseCompletion = make(map[int]int, len(p.PhaseCompletion))
	for k, v := range p.PhaseCompletion {
		c.PhaseCompletion[k] = v
	}
	if p.ProgramCompletedAt != nil {
		t := *p.ProgramCompletedAt
		c.ProgramCompletedAt = &t
	}
	return &c
}

// HasCompletedActivity reports whether the user saved a record on the activity.
func (p *UserProgress) HasCompletedActivity(activityID int) bool {
	i := sort.SearchInts(p.CompletedActivities, activityID)
	return i < len(p.CompletedActivities) && p.CompletedActivities[i] == activityID
}

// MarkActivity moves the activity pointer and adds the activity to the completed set.
func (p *UserProgress) MarkActivity(activityID int) {
	p.CurrentActivity = activityID
	if p.HasCompletedActivity(activityID) {
		return
	}
	p.CompletedActivities = append(p.CompletedActivities, activityID)
	sort.Ints(p.CompletedActivities)
}

// XPEntry is one line of the append-only award log. An entry with Once set
// is applied at most once per user and reason.
type XPEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Amount     int       `json:"amount"`
	Reason     string    `json:"reason"`
	ActivityID *int      `json:"activityId,omitempty"`
	BadgeID    string    `json:"badgeId,omitempty"`
	Once       bool      `json:"once,omitempty"`
}

// UserXP is a user's experience total and cached level.
type UserXP struct {
	UserID string `json:"userId"`
	Total  int    `json:"total"`
	Level  int    `json:"level"`
}

// UserBadge is an unlocked badge with the display data it had at unlock time.
type UserBadge struct {
	BadgeID     string    `json:"badgeId"`
	UnlockedAt  time.Time `json:"unlockedAt"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
}
