// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	xpStoreKeyPrefix     = "progression:xp:"
	xpLogStoreKeyPrefix  = "progression:xp_log:"
	xpOnceStoreKeyPrefix = "progression:xp_once:"

	xpFieldTotal = "total"
	xpFieldLevel = "level"
)

// RedisXPStore implements XPStore with a hash for the total and level, a
// list for the award log and a set of the one-time reasons already paid.
type RedisXPStore struct {
	client *redis.Client
}

// NewRedisXPStore creates a new Redis-backed XP store.
func NewRedisXPStore(client *redis.Client) *RedisXPStore {
	return &RedisXPStore{client: client}
}

func makeXPStoreKey(userID string) string {
	return fmt.Sprintf("%s%s", xpStoreKeyPrefix, userID)
}

func makeXPLogStoreKey(userID string) string {
	return fmt.Sprintf("%s%s", xpLogStoreKeyPrefix, userID)
}

func makeXPOnceStoreKey(userID string) string {
	return fmt.Sprintf("%s%s", xpOnceStoreKeyPrefix, userID)
}

// GetXP retrieves the XP row of a user
func (r *RedisXPStore) GetXP(ctx context.Context, userID string, levelFor func(int) int) (*UserXP, error) {
	vals, err := r.client.HMGet(ctx, makeXPStoreKey(userID), xpFieldTotal, xpFieldLevel).Result()
	if err != nil {
		logrus.Errorf("failed to get xp for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to get xp: %w", err)
	}

	total, err := hashInt(vals[0])
	if err != nil {
		return nil, err
	}
	return &UserXP{UserID: userID, Total: total, Level: levelFor(total)}, nil
}

// AddXP applies an award inside a WATCH/MULTI transaction, retrying when
// another award for the same user commits first.
func (r *RedisXPStore) AddXP(ctx context.Context, userID string, entry XPEntry, levelFor func(int) int) (*UserXP, int, error) {
	key := makeXPStoreKey(userID)
	logKey := makeXPLogStoreKey(userID)
	onceKey := makeXPOnceStoreKey(userID)

	encoded, err := json.Marshal(entry)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal xp entry: %w", err)
	}

	var (
		result    *UserXP
		prevLevel int
	)

	txf := func(tx *redis.Tx) error {
		vals, err := tx.HMGet(ctx, key, xpFieldTotal).Result()
		if err != nil {
			return fmt.Errorf("failed to get xp: %w", err)
		}
		total, err := hashInt(vals[0])
		if err != nil {
			return err
		}
		if entry.Amount > 0 && total > math.MaxInt-entry.Amount {
			return fmt.Errorf("%w: %d + %d", ErrOverflow, total, entry.Amount)
		}
		if entry.Once {
			paid, err := tx.SIsMember(ctx, onceKey, entry.Reason).Result()
			if err != nil {
				return fmt.Errorf("failed to read paid awards: %w", err)
			}
			if paid {
				return fmt.Errorf("%w: %s", ErrAlreadyApplied, entry.Reason)
			}
		}

		newTotal := total + entry.Amount
		newLevel := levelFor(newTotal)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, xpFieldTotal, newTotal, xpFieldLevel, newLevel)
			pipe.RPush(ctx, logKey, encoded)
			if entry.Once {
				pipe.SAdd(ctx, onceKey, entry.Reason)
			}
			return nil
		})
		if err != nil {
			return err
		}

		prevLevel = levelFor(total)
		result = &UserXP{UserID: userID, Total: newTotal, Level: newLevel}
		return nil
	}

	err = RetryOnConflict(ctx, func() error {
		err := r.client.Watch(ctx, txf, key, onceKey)
		if errors.Is(err, redis.TxFailedErr) {
			logrus.Debugf("xp award for user %s raced another writer, retrying", userID)
			return ErrConflict
		}
		return err
	})
	if errors.Is(err, ErrAlreadyApplied) {
		logrus.Infof("user %s was already paid %s", userID, entry.Reason)
		return nil, 0, err
	}
	if err != nil {
		logrus.Errorf("failed to add %d xp for user %s: %v", entry.Amount, userID, err)
		return nil, 0, fmt.Errorf("failed to add xp: %w", err)
	}

	logrus.Infof("user %s gained %d xp (%s), total %d", userID, entry.Amount, entry.Reason, result.Total)
	return result, prevLevel, nil
}

// History returns the newest limit entries of the award log, oldest first.
// A non-positive limit returns the whole log.
func (r *RedisXPStore) History(ctx context.Context, userID string, limit int) ([]XPEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := r.client.LRange(ctx, makeXPLogStoreKey(userID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read xp history: %w", err)
	}

	entries := make([]XPEntry, 0, len(raw))
	for _, item := range raw {
		var e XPEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			logrus.Warnf("skipping malformed xp entry for user %s: %v", userID, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func hashInt(v interface{}) (int, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected xp value type %T", v)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("malformed xp value %q: %w", s, err)
	}
	return n, nil
}
