// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package metrics declares the Prometheus collectors of the progression service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "progression"

var (
	XPAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_awarded_total",
			Help:      "Total experience points awarded, by reason code",
		},
		[]string{"reason"},
	)

	LevelUpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_ups_total",
			Help:      "Total level-ups, by level reached",
		},
		[]string{"level"},
	)

	BadgesUnlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badges_unlocked_total",
			Help:      "Total badge unlocks",
		},
		[]string{"badge_id", "category"},
	)

	PhaseAdvancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_advances_total",
			Help:      "Total successful phase completions, by completed phase",
		},
		[]string{"phase"},
	)

	PhaseBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_advance_blocked_total",
			Help:      "Total advance attempts refused because criteria were unmet",
		},
		[]string{"phase"},
	)

	MetricReadErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_read_errors_total",
			Help:      "Aggregate queries that failed and were treated as unmet",
		},
		[]string{"source"},
	)

	ActivitiesRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_recorded_total",
			Help:      "Activity records saved, by record kind",
		},
		[]string{"kind"},
	)
)

// Register adds every progression collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		XPAwardedTotal,
		LevelUpsTotal,
		BadgesUnlockedTotal,
		PhaseAdvancesTotal,
		PhaseBlockedTotal,
		MetricReadErrorsTotal,
		ActivitiesRecordedTotal,
	)
}
