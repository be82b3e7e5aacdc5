// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package metric defines the read boundary between the progression engine and
// the store that owns a user's activity records.
//
// The engine never reads raw records. Everything it needs to decide on phase
// completion or badge unlocks is an aggregate: a count, an average of a numeric
// field, or a streak of consecutive days.
package metric

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidFilter indicates a filter with an unknown operator or a malformed value.
	ErrInvalidFilter = errors.New("invalid metric filter")

	// ErrInvalidField indicates a field name that is not a plain identifier.
	ErrInvalidField = errors.New("invalid record field name")
)

// Accessor answers aggregate queries over one user's activity records.
type Accessor interface {
	// Count returns the number of records of kind that match every filter.
	Count(ctx context.Context, userID, kind string, filters ...Filter) (int, error)

	// Average returns the mean of a numeric field over matching records.
	// An empty record set averages to 0.
	Average(ctx context.Context, userID, kind, field string, filters ...Filter) (float64, error)

	// Streak returns the number of consecutive days, ending today or yesterday,
	// on which the user saved at least one record of kind.
	Streak(ctx context.Context, userID, kind string) (int, error)
}

// Recorder appends activity records.
type Recorder interface {
	Insert(ctx context.Context, record *Record) error
}

// Record is a single activity entry saved by a user.
type Record struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"userId"`
	Kind       string                 `json:"kind"`
	RecordedOn time.Time              `json:"recordedOn"`
	CreatedAt  time.Time              `json:"createdAt"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}
