// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package xp

import (
	"sort"

	"github.com/AccelByte/extend-guided-progression/pkg/rules"
)

// NoNextLevel is the threshold reported for the level after the last one.
const NoNextLevel = 999999

// LevelFor returns the greatest level whose threshold is at or below total.
// Level 1 is the floor. levels must be ascending by XP.
func LevelFor(levels []rules.Level, total int) int {
	// first index whose threshold is above total
	i := sort.Search(len(levels), func(i int) bool { return levels[i].XP > total })
	if i == 0 {
		return 1
	}
	return levels[i-1].Level
}

// XPForNextLevel returns the threshold of the level after level, or
// NoNextLevel at the top of the table.
func XPForNextLevel(levels []rules.Level, level int) int {
	for i, l := range levels {
		if l.Level == level && i+1 < len(levels) {
			return levels[i+1].XP
		}
	}
	return NoNextLevel
}

// Info returns the table row of level, falling back to the first row.
func Info(levels []rules.Level, level int) rules.Level {
	for _, l := range levels {
		if l.Level == level {
			return l
		}
	}
	if len(levels) > 0 {
		return levels[0]
	}
	return rules.Level{Level: 1}
}

// ProgressInLevel is the share of the current level's band already earned,
// as a percentage clamped to [0, 100]. The last level reports 100.
func ProgressInLevel(levels []rules.Level, total int) int {
	level := LevelFor(levels, total)
	next := XPForNextLevel(levels, level)
	if next == NoNextLevel {
		return 100
	}

	current := Info(levels, level).XP
	if next <= current {
		return 100
	}

	pct := (total - current) * 100 / (next - current)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Leveler binds the level helpers to a table, for stores that cache the level.
func Leveler(levels []rules.Level) func(int) int {
	return func(total int) int { return LevelFor(levels, total) }
}
