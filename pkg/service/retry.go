// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const conflictRetries = 5

// RetryOnConflict runs op again while it fails with ErrConflict, backing off
// between attempts. Any other error stops the retries immediately.
func RetryOnConflict(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	return backoff.Retry(
		func() error {
			err := op()
			if err == nil || errors.Is(err, ErrConflict) {
				return err
			}
			return backoff.Permanent(err)
		},
		backoff.WithContext(backoff.WithMaxRetries(b, conflictRetries), ctx),
	)
}
