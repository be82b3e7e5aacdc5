// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Load reads configuration from environment variables.
// It attempts to load from .env file first (for local development),
// then parses environment variables into the Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("no .env file found or error loading it: %v (this is normal in production)", err)
	} else {
		logrus.Infof("loaded environment variables from .env file")
	}

	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges and the AccelByte settings when the platform
// integration is enabled.
func (c *Config) Validate() error {
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid GRPC_PORT: %d (must be 1-65535)", c.GRPCPort)
	}

	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid METRICS_PORT: %d (must be 1-65535)", c.MetricsPort)
	}

	if c.GRPCPort == c.MetricsPort {
		return fmt.Errorf("GRPC_PORT and METRICS_PORT must differ, both are %d", c.GRPCPort)
	}

	if c.RedisMaxRetries < 0 {
		return fmt.Errorf("invalid REDIS_MAX_RETRIES: %d (must be non-negative)", c.RedisMaxRetries)
	}

	if c.RedisRetryDelayMs < 0 {
		return fmt.Errorf("invalid REDIS_RETRY_DELAY_MS: %d (must be non-negative)", c.RedisRetryDelayMs)
	}

	if c.ActivityDBPath == "" {
		return fmt.Errorf("ACTIVITY_DB_PATH is required")
	}

	if c.EventChannel == "" {
		return fmt.Errorf("EVENT_CHANNEL is required")
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if c.ABEnabled {
		required := map[string]string{
			"AB_NAMESPACE":     c.ABNamespace,
			"AB_BASE_URL":      c.ABBaseURL,
			"AB_CLIENT_ID":     c.ABClientID,
			"AB_CLIENT_SECRET": c.ABClientSecret,
		}
		for _, name := range []string{"AB_NAMESPACE", "AB_BASE_URL", "AB_CLIENT_ID", "AB_CLIENT_SECRET"} {
			if required[name] == "" {
				return fmt.Errorf("%s is required when AB_ENABLED is true", name)
			}
		}
	}

	return nil
}
