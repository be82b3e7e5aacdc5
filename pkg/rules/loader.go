// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package rules

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultTables []byte

// Default returns the built-in program tables.
func Default() (*Tables, error) {
	return Parse(defaultTables)
}

// Load reads rule tables from a YAML file. An empty path selects the built-in tables.
// Supports environment variable expansion in the form ${VAR_NAME} or ${VAR_NAME:default}.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes, validates and indexes rule tables.
func Parse(data []byte) (*Tables, error) {
	expanded := expandEnvVars(string(data))

	var tables Tables
	if err := yaml.Unmarshal([]byte(expanded), &tables); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules: %w", err)
	}

	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	return &tables, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		parts := strings.SplitN(key, ":", 2)
		varName := parts[0]
		defaultValue := ""
		if len(parts) == 2 {
			defaultValue = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}
