// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
)

// Store interfaces for the three entities the progression engine owns.
// Having interfaces allows easier mocking for unit tests.

// ProgressStore persists UserProgress.
type ProgressStore interface {
	// GetProgress returns ErrNotFound when the user has no row yet.
	GetProgress(ctx context.Context, userID string) (*UserProgress, error)

	// CreateProgress inserts p if the user has no row and returns the stored row,
	// which is the existing one when another writer got there first.
	CreateProgress(ctx context.Context, p *UserProgress) (*UserProgress, error)

	// UpdateProgress writes p if the stored version still equals p.Version and
	// bumps the version. It returns ErrConflict otherwise.
	UpdateProgress(ctx context.Context, p *UserProgress) error
}

// XPStore persists UserXP and its award log.
type XPStore interface {
	// GetXP returns a zero total when the user has no row yet.
	GetXP(ctx context.Context, userID string, levelFor func(total int) int) (*UserXP, error)

	// AddXP adds entry.Amount to the total, stores the level derived by levelFor
	// and appends entry to the log as one atomic unit. It returns the new row
	// and the level before the award. It returns ErrOverflow when the total
	// would leave the integer range, and ErrAlreadyApplied for a repeated
	// entry with Once set.
	AddXP(ctx context.Context, userID string, entry XPEntry, levelFor func(total int) int) (*UserXP, int, error)

	// History returns up to limit of the most recent log entries, oldest first.
	History(ctx context.Context, userID string, limit int) ([]XPEntry, error)
}

// BadgeStore persists UserBadge rows.
type BadgeStore interface {
	ListBadges(ctx context.Context, userID string) ([]UserBadge, error)

	// InsertBadge stores b unless the user already holds it. It reports whether a
	// new row was written.
	InsertBadge(ctx context.Context, userID string, b UserBadge) (bool, error)

	// RemoveBadge deletes a badge row. Removing a badge the user does not hold
	// is not an error.
	RemoveBadge(ctx context.Context, userID, badgeID string) error
}

// EntitlementGranter grants platform items.
type EntitlementGranter interface {
	// GrantEntitlement grants an entitlement/item to a player
	GrantEntitlement(ctx context.Context, userID, itemID string, quantity int) error
}
