// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const badgeStoreKeyPrefix = "progression:badges:"

// RedisBadgeStore implements BadgeStore with one hash per user, keyed by badge id.
// HSETNX gives the (user, badge) uniqueness constraint.
type RedisBadgeStore struct {
	client *redis.Client
}

// NewRedisBadgeStore creates a new Redis-backed badge store.
func NewRedisBadgeStore(client *redis.Client) *RedisBadgeStore {
	return &RedisBadgeStore{client: client}
}

func makeBadgeStoreKey(userID string) string {
	return fmt.Sprintf("%s%s", badgeStoreKeyPrefix, userID)
}

// ListBadges returns the unlocked badges of a user ordered by unlock time
func (r *RedisBadgeStore) ListBadges(ctx context.Context, userID string) ([]UserBadge, error) {
	raw, err := r.client.HGetAll(ctx, makeBadgeStoreKey(userID)).Result()
	if err != nil {
		logrus.Errorf("failed to list badges for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}

	badges := make([]UserBadge, 0, len(raw))
	for id, data := range raw {
		var b UserBadge
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			logrus.Warnf("skipping malformed badge %s for user %s: %v", id, userID, err)
			continue
		}
		badges = append(badges, b)
	}

	sort.Slice(badges, func(i, j int) bool {
		if badges[i].UnlockedAt.Equal(badges[j].UnlockedAt) {
			return badges[i].BadgeID < badges[j].BadgeID
		}
		return badges[i].UnlockedAt.Before(badges[j].UnlockedAt)
	})
	return badges, nil
}

// InsertBadge writes the badge only if the user does not hold it yet
func (r *RedisBadgeStore) InsertBadge(ctx context.Context, userID string, b UserBadge) (bool, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("failed to marshal badge: %w", err)
	}

	created, err := r.client.HSetNX(ctx, makeBadgeStoreKey(userID), b.BadgeID, data).Result()
	if err != nil {
		logrus.Errorf("failed to insert badge %s for user %s: %v", b.BadgeID, userID, err)
		return false, fmt.Errorf("failed to insert badge: %w", err)
	}

	if created {
		logrus.Infof("user %s unlocked badge %s", userID, b.BadgeID)
	} else {
		logrus.Infof("user %s already holds badge %s", userID, b.BadgeID)
	}
	return created, nil
}

// RemoveBadge deletes the badge row of a user
func (r *RedisBadgeStore) RemoveBadge(ctx context.Context, userID, badgeID string) error {
	if err := r.client.HDel(ctx, makeBadgeStoreKey(userID), badgeID).Err(); err != nil {
		logrus.Errorf("failed to remove badge %s for user %s: %v", badgeID, userID, err)
		return fmt.Errorf("failed to remove badge: %w", err)
	}
	logrus.Infof("removed badge %s from user %s", badgeID, userID)
	return nil
}
