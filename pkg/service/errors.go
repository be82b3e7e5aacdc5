// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import "errors"

var (
	// ErrNotFound indicates that no progress row exists yet for a user.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates that a record changed between read and write.
	ErrConflict = errors.New("concurrent modification")

	// ErrAlreadyApplied indicates that a one-time award was paid before.
	ErrAlreadyApplied = errors.New("award already applied")

	// ErrOverflow indicates that an award would push a total past the integer range.
	ErrOverflow = errors.New("xp total overflow")
)
