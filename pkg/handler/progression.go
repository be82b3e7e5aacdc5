// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package handler

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/AccelByte/extend-guided-progression/pkg/common"
	"github.com/AccelByte/extend-guided-progression/pkg/metric"
	progressionv1 "github.com/AccelByte/extend-guided-progression/pkg/pb/progression/v1"
	"github.com/AccelByte/extend-guided-progression/pkg/pipeline"
	"github.com/AccelByte/extend-guided-progression/pkg/progression"
	"github.com/AccelByte/extend-guided-progression/pkg/service"
	"github.com/AccelByte/extend-guided-progression/pkg/xp"
)

// Progression serves progression.v1.ProgressionService. Every call opens a
// fresh session for the requesting user.
type Progression struct {
	progressionv1.UnimplementedProgressionServiceServer

	manager *pipeline.Manager
}

// NewProgression creates the gRPC handler over manager.
func NewProgression(manager *pipeline.Manager) *Progression {
	return &Progression{manager: manager}
}

func (p *Progression) open(scope *common.Scope, req *structpb.Struct) (*pipeline.Session, error) {
	userID, err := requiredString(req, "userId")
	if err != nil {
		return nil, err
	}
	scope.TraceTag("user_id", userID)
	return p.manager.Open(scope.Ctx, userID)
}

// CanAccessActivity reports whether the user may open an activity.
func (p *Progression) CanAccessActivity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scope := common.GetScopeFromContext(ctx, "Progression.CanAccessActivity")
	defer scope.Finish()

	activityID, err := requiredInt(req, "activityId")
	if err != nil {
		return nil, toStatus(scope, err)
	}
	scope.SetAttributes("activity_id", activityID)
	session, err := p.open(scope, req)
	if err != nil {
		return nil, toStatus(scope, err)
	}

	allowed := session.Progression.CheckAccess(scope.Ctx, activityID)
	return respond(scope, map[string]interface{}{"allowed": allowed})
}

// AdvancePhase completes the current phase when its criteria hold.
func (p *Progression) AdvancePhase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scope := common.GetScopeFromContext(ctx, "Progression.AdvancePhase")
	defer scope.Finish()

	session, err := p.open(scope, req)
	if err != nil {
		return nil, toStatus(scope, err)
	}

	result, unlocked, err := session.AdvancePhase(scope.Ctx)
	if err != nil {
		return nil, toStatus(scope, err)
	}
	if result.Advanced {
		scope.TraceEvent("phase advanced")
	}

	return respond(scope, map[string]interface{}{
		"advanced":        result.Advanced,
		"programComplete": result.ProgramComplete,
		"from":            result.From,
		"to":              result.To,
		"unmet":           stringList(result.Unmet),
		"unlocked":        stringList(unlocked),
	})
}

// SetGuidedMode switches between guided and free navigation.
func (p *Progression) SetGuidedMode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scope := common.GetScopeFromContext(ctx, "Progression.SetGuidedMode")
	defer scope.Finish()

	enabled, err := requiredBool(req, "enabled")
	if err != nil {
		return nil, toStatus(scope, err)
	}
	session, err := p.open(scope, req)
	if err != nil {
		return nil, toStatus(scope, err)
	}

	if err := session.Progression.ToggleMode(scope.Ctx, enabled); err != nil {
		return nil, toStatus(scope, err)
	}
	return respond(scope, map[string]interface{}{"guidedMode": session.Progression.GuidedMode()})
}

// AwardXP grants an explicit amount, or the reward table amount of reason when
// amount is omitted.
func (p *Progression) AwardXP(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scope := common.GetScopeFromContext(ctx, "Progression.AwardXP")
	defer scope.Finish()

	reason, err := requiredString(req, "reason")
	if err != nil {
		return nil, toStatus(scope, err)
	}
	amount, err := optionalInt(req, "amount")
	if err != nil {
		return nil, toStatus(scope, err)
	}
	activityID, err := optionalInt(req, "activityId")
	if err != nil {
		return nil, toStatus(scope, err)
	}
	session, err := p.open(scope, req)
	if err != nil {
		return nil, toStatus(scope, err)
	}

	var result *xp.AwardResult
	if amount == nil {
		result, err = session.XP.AwardReason(scope.Ctx, reason, activityID)
	} else {
		result, err = session.XP.Award(scope.Ctx, *amount, reason, activityID)
	}
	if err != nil {
		return nil, toStatus(scope, err)
	}

	return respond(scope, map[string]interface{}{
		"amount":    result.Amount,
		"total":     result.Total,
		"level":     result.Level,
		"leveledUp": result.LeveledUp,
	})
}

// CheckBadges evaluates one badge, or all of them when badgeId is omitted.
func (p *Progression) CheckBadges(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scope := common.GetScopeFromContext(ctx, "Progression.CheckBadges")
	defer scope.Finish()

	badgeID, err := optionalString(req, "badgeId")
	if err != nil {
		return nil, toStatus(scope, err)
	}
	session, err := p.open(scope, req)
	if err != nil {
		return nil, toStatus(scope, err)
	}

	unlocked, err := session.CheckBadges(scope.Ctx, badgeID)
	if err != nil && len(unlocked) == 0 {
		return nil, toStatus(scope, err)
	}
	if err != nil {
		scope.Log.Warnf("badge check finished with errors: %v", err)
	}
	return respond(scope, map[string]interface{}{"unlocked": stringList(unlocked)})
}

// RecordActivity saves an activity record and applies what it earned.
func (p *Progression) RecordActivity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scope := common.GetScopeFromContext(ctx, "Progression.RecordActivity")
	defer scope.Finish()

	activityID, err := requiredInt(req, "activityId")
	if err != nil {
		return nil, toStatus(scope, err)
	}
	scope.SetAttributes("activity_id", activityID)
	date, err := optionalDate(req, "date")
	if err != nil {
		return nil, toStatus(scope, err)
	}
	fields, err := optionalObject(req, "fields")
	if err != nil {
		return nil, toStatus(scope, err)
	}
	session, err := p.open(scope, req)
	if err != nil {
		return nil, toStatus(scope, err)
	}

	result, err := session.RecordActivity(scope.Ctx, pipeline.ActivityInput{
		ActivityID: activityID,
		Date:       date,
		Fields:     fields,
	})
	if err != nil {
		return nil, toStatus(scope, err)
	}

	xpGained := 0
	if result.Award != nil {
		xpGained = result.Award.Amount
	}
	return respond(scope, map[string]interface{}{
		"recordId": result.RecordID,
		"xp":       xpGained,
		"unlocked": stringList(result.Unlocked),
	})
}

// GetSnapshot returns the user's phase, XP and badges.
func (p *Progression) GetSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	scope := common.GetScopeFromContext(ctx, "Progression.GetSnapshot")
	defer scope.Finish()

	session, err := p.open(scope, req)
	if err != nil {
		return nil, toStatus(scope, err)
	}
	snap, err := session.Snapshot(scope.Ctx)
	if err != nil {
		return nil, toStatus(scope, err)
	}

	completion := make(map[string]interface{}, len(snap.Progress.PhaseCompletion))
	for phase, percent := range snap.Progress.PhaseCompletion {
		completion[strconv.Itoa(phase)] = percent
	}

	recent := make([]interface{}, 0, len(snap.RecentXP))
	for _, e := range snap.RecentXP {
		entry := map[string]interface{}{
			"timestamp": formatTime(&e.Timestamp),
			"amount":    e.Amount,
			"reason":    e.Reason,
		}
		if e.ActivityID != nil {
			entry["activityId"] = *e.ActivityID
		}
		recent = append(recent, entry)
	}

	categories := make([]interface{}, 0, len(snap.Categories))
	for _, c := range snap.Categories {
		badges := make([]interface{}, 0, len(c.Badges))
		for _, b := range c.Badges {
			badges = append(badges, map[string]interface{}{
				"id":          b.ID,
				"name":        b.Name,
				"icon":        b.Icon,
				"description": b.Description,
				"xp":          b.XP,
				"unlocked":    b.Unlocked,
				"unlockedAt":  formatTime(b.UnlockedAt),
			})
		}
		categories = append(categories, map[string]interface{}{
			"name":   c.Name,
			"badges": badges,
		})
	}

	return respond(scope, map[string]interface{}{
		"loaded":              snap.Progress.Loaded,
		"phase":               snap.Progress.Phase,
		"phaseTitle":          snap.Progress.PhaseTitle,
		"guidedMode":          snap.Progress.GuidedMode,
		"currentActivity":     snap.Progress.CurrentActivity,
		"completedActivities": intList(snap.Progress.CompletedActivities),
		"phaseCompletion":     completion,
		"currentPhasePercent": snap.CurrentPhasePercent,
		"programComplete":     snap.Progress.ProgramComplete,
		"xp":                  snap.XP,
		"level": map[string]interface{}{
			"level": snap.Level.Level,
			"title": snap.Level.Title,
			"icon":  snap.Level.Icon,
			"color": snap.Level.Color,
		},
		"nextLevelXp":   snap.NextLevelXP,
		"levelProgress": snap.LevelProgress,
		"recentXp":      recent,
		"badgeProgress": map[string]interface{}{
			"unlocked": snap.BadgeProgress.Unlocked,
			"total":    snap.BadgeProgress.Total,
			"percent":  snap.BadgeProgress.Percent,
		},
		"categories": categories,
	})
}

func respond(scope *common.Scope, out map[string]interface{}) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(out)
	if err != nil {
		scope.TraceError(err)
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(scope *common.Scope, err error) error {
	scope.TraceError(err)

	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, pipeline.ErrMissingUser),
		errors.Is(err, pipeline.ErrNoRecordKind),
		errors.Is(err, progression.ErrUnknownActivity),
		errors.Is(err, xp.ErrInvalidAmount),
		errors.Is(err, xp.ErrUnknownReason),
		errors.Is(err, service.ErrOverflow),
		errors.Is(err, metric.ErrInvalidField),
		errors.Is(err, metric.ErrInvalidFilter):
		scope.Log.Infof("rejected request: %v", err)
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, pipeline.ErrAccessDenied):
		scope.Log.Infof("denied request: %v", err)
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, progression.ErrNoProgress):
		scope.Log.Warnf("request needs progress: %v", err)
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrConflict):
		scope.Log.Warnf("request lost a concurrent update: %v", err)
		return status.Error(codes.Aborted, err.Error())
	default:
		scope.Log.Errorf("request failed: %v", err)
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}
