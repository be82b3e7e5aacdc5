// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// progressStoreKeyPrefix is the prefix for all progress keys
const progressStoreKeyPrefix = "progression:progress:"

// RedisProgressStore implements ProgressStore using Redis.
// Rows are JSON blobs without TTL; progress is never deleted.
type RedisProgressStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisProgressStore creates a new Redis-backed progress store.
func NewRedisProgressStore(client *redis.Client) *RedisProgressStore {
	return &RedisProgressStore{
		client: client,
		now:    time.Now,
	}
}

// makeProgressStoreKey creates a Redis key for a user
func makeProgressStoreKey(userID string) string {
	return fmt.Sprintf("%s%s", progressStoreKeyPrefix, userID)
}

// GetProgress retrieves the progress row of a user from Redis
func (r *RedisProgressStore) GetProgress(ctx context.Context, userID string) (*UserProgress, error) {
	data, err := r.client.Get(ctx, makeProgressStoreKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		logrus.Errorf("failed to get progress for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return decodeProgress(userID, data)
}

// CreateProgress inserts the row only when the key is absent
func (r *RedisProgressStore) CreateProgress(ctx context.Context, p *UserProgress) (*UserProgress, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal progress: %w", err)
	}

	created, err := r.client.SetNX(ctx, makeProgressStoreKey(p.UserID), data, 0).Result()
	if err != nil {
		logrus.Errorf("failed to create progress for user %s: %v", p.UserID, err)
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}
	if !created {
		logrus.Infof("progress for user %s already exists, using stored row", p.UserID)
		return r.GetProgress(ctx, p.UserID)
	}

	logrus.Infof("created progress for user %s at phase %d", p.UserID, p.CurrentPhase)
	return p, nil
}

// UpdateProgress writes p under an optimistic version check
func (r *RedisProgressStore) UpdateProgress(ctx context.Context, p *UserProgress) error {
	key := makeProgressStoreKey(p.UserID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get progress: %w", err)
		}

		stored, err := decodeProgress(p.UserID, data)
		if err != nil {
			return err
		}
		if stored.Version != p.Version {
			return ErrConflict
		}

		next := p.Clone()
		next.Version = p.Version + 1
		next.UpdatedAt = r.now()
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal progress: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}

		p.Version = next.Version
		p.UpdatedAt = next.UpdatedAt
		return nil
	}

	err := r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		err = ErrConflict
	}
	if err != nil {
		logrus.Warnf("failed to update progress for user %s: %v", p.UserID, err)
		return err
	}

	logrus.Debugf("updated progress for user %s to version %d", p.UserID, p.Version)
	return nil
}

func decodeProgress(userID, data string) (*UserProgress, error) {
	var p UserProgress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		logrus.Errorf("failed to unmarshal progress for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	if p.PhaseCompletion == nil {
		p.PhaseCompletion = make(map[int]int)
	}
	if p.CompletedActivities == nil {
		p.CompletedActivities = []int{}
	}
	return &p, nil
}
