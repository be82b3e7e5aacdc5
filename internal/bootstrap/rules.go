// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package bootstrap

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-guided-progression/pkg/rules"
)

// InitRules loads the rule tables from path, or the embedded defaults when
// path is empty. Tables are validated before they are returned.
func InitRules(path string) (*rules.Tables, error) {
	tables, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule tables: %w", err)
	}

	source := path
	if source == "" {
		source = "embedded defaults"
	}
	logrus.Infof("loaded rule tables from %s: %d phases, %d activities, %d badges, %d levels",
		source, len(tables.Phases), len(tables.Activities), len(tables.Badges), len(tables.Levels))

	return tables, nil
}
