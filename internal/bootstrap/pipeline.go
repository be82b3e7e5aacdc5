// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-guided-progression/pkg/event"
	"github.com/AccelByte/extend-guided-progression/pkg/metric"
	"github.com/AccelByte/extend-guided-progression/pkg/pipeline"
	"github.com/AccelByte/extend-guided-progression/pkg/rules"
	"github.com/AccelByte/extend-guided-progression/pkg/service"
)

// ActivityStore is what the session manager needs from the activity records.
type ActivityStore interface {
	metric.Accessor
	metric.Recorder
}

// InitStores creates the Redis entity stores.
func InitStores(client *redis.Client) pipeline.Stores {
	return pipeline.Stores{
		Progress: service.NewRedisProgressStore(client),
		XP:       service.NewRedisXPStore(client),
		Badges:   service.NewRedisBadgeStore(client),
	}
}

// InitPipeline creates the session manager. granter may be nil, in which case
// badge reward items are not granted.
func InitPipeline(
	tables *rules.Tables,
	stores pipeline.Stores,
	activities ActivityStore,
	publisher event.Publisher,
	granter service.EntitlementGranter,
) *pipeline.Manager {
	var opts []pipeline.Option
	if granter != nil {
		opts = append(opts, pipeline.WithGranter(granter))
	} else {
		logrus.Infof("platform integration disabled, badge reward items will not be granted")
	}

	manager := pipeline.NewManager(
		tables,
		stores,
		activities,
		activities,
		publisher,
		logrus.WithField("component", "pipeline"),
		opts...,
	)
	logrus.Infof("initialized pipeline manager")

	return manager
}
