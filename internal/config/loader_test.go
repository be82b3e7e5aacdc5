// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package config

import (
	"strings"
	"testing"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.GRPCPort != 6565 {
		t.Errorf("GRPCPort = %d, expected 6565", cfg.GRPCPort)
	}
	if cfg.ABEnabled {
		t.Error("ABEnabled = true, expected false")
	}
	if cfg.ActivityDBPath != "data/activities.db" {
		t.Errorf("ActivityDBPath = %s, expected data/activities.db", cfg.ActivityDBPath)
	}
	if cfg.EventChannel != "progression:events" {
		t.Errorf("EventChannel = %s, expected progression:events", cfg.EventChannel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, expected defaults to be valid", err)
	}
}

func TestParse_FromEnvironment(t *testing.T) {
	t.Setenv("GRPC_PORT", "7000")
	t.Setenv("AB_ENABLED", "true")
	t.Setenv("AB_NAMESPACE", "calm")
	t.Setenv("RULES_PATH", "/etc/progression/rules.yaml")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.GRPCPort != 7000 {
		t.Errorf("GRPCPort = %d, expected 7000", cfg.GRPCPort)
	}
	if !cfg.ABEnabled || cfg.ABNamespace != "calm" {
		t.Errorf("AB = %v/%s, expected enabled in calm", cfg.ABEnabled, cfg.ABNamespace)
	}
	if cfg.RulesPath != "/etc/progression/rules.yaml" {
		t.Errorf("RulesPath = %s, expected /etc/progression/rules.yaml", cfg.RulesPath)
	}
}

func TestParse_RejectsMalformedPort(t *testing.T) {
	t.Setenv("GRPC_PORT", "not-a-port")

	if _, err := Parse(); err == nil {
		t.Error("Parse() error = nil, expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			GRPCPort:       6565,
			MetricsPort:    8080,
			LogLevel:       "info",
			ActivityDBPath: "data/activities.db",
			EventChannel:   "progression:events",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"grpc port range", func(c *Config) { c.GRPCPort = 0 }, "GRPC_PORT"},
		{"metrics port range", func(c *Config) { c.MetricsPort = 70000 }, "METRICS_PORT"},
		{"same ports", func(c *Config) { c.MetricsPort = 6565 }, "must differ"},
		{"negative redis retries", func(c *Config) { c.RedisMaxRetries = -1 }, "REDIS_MAX_RETRIES"},
		{"empty db path", func(c *Config) { c.ActivityDBPath = "" }, "ACTIVITY_DB_PATH"},
		{"empty channel", func(c *Config) { c.EventChannel = "" }, "EVENT_CHANNEL"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"platform off ignores AB fields", func(c *Config) { c.ABEnabled = false }, ""},
		{"platform on needs namespace", func(c *Config) { c.ABEnabled = true }, "AB_NAMESPACE"},
		{"platform on needs secret", func(c *Config) {
			c.ABEnabled = true
			c.ABNamespace = "calm"
			c.ABBaseURL = "https://example.accelbyte.io"
			c.ABClientID = "id"
		}, "AB_CLIENT_SECRET"},
		{"platform on complete", func(c *Config) {
			c.ABEnabled = true
			c.ABNamespace = "calm"
			c.ABBaseURL = "https://example.accelbyte.io"
			c.ABClientID = "id"
			c.ABClientSecret = "secret"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, expected nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, expected it to mention %s", err, tt.wantErr)
			}
		})
	}
}
