// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package handler

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// errInvalidRequest marks a malformed request payload.
var errInvalidRequest = errors.New("invalid request")

const dateLayout = "2006-01-02"

// maxRequestInt bounds integer fields so client values cannot overflow totals.
const maxRequestInt = math.MaxInt32

func field(req *structpb.Struct, name string) (*structpb.Value, bool) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func requiredString(req *structpb.Struct, name string) (string, error) {
	v, ok := field(req, name)
	if !ok {
		return "", fmt.Errorf("%w: %s is required", errInvalidRequest, name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || s.StringValue == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", errInvalidRequest, name)
	}
	return s.StringValue, nil
}

func optionalString(req *structpb.Struct, name string) (string, error) {
	if _, ok := field(req, name); !ok {
		return "", nil
	}
	return requiredString(req, name)
}

func requiredInt(req *structpb.Struct, name string) (int, error) {
	v, ok := field(req, name)
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", errInvalidRequest, name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("%w: %s must be an integer", errInvalidRequest, name)
	}
	if math.Abs(n.NumberValue) > maxRequestInt {
		return 0, fmt.Errorf("%w: %s must be between -%d and %d", errInvalidRequest, name, maxRequestInt, maxRequestInt)
	}
	return int(n.NumberValue), nil
}

func optionalInt(req *structpb.Struct, name string) (*int, error) {
	if _, ok := field(req, name); !ok {
		return nil, nil
	}
	n, err := requiredInt(req, name)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func requiredBool(req *structpb.Struct, name string) (bool, error) {
	v, ok := field(req, name)
	if !ok {
		return false, fmt.Errorf("%w: %s is required", errInvalidRequest, name)
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean", errInvalidRequest, name)
	}
	return b.BoolValue, nil
}

func optionalDate(req *structpb.Struct, name string) (time.Time, error) {
	s, err := optionalString(req, name)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errInvalidRequest, name)
	}
	return t, nil
}

func optionalObject(req *structpb.Struct, name string) (map[string]interface{}, error) {
	v, ok := field(req, name)
	if !ok {
		return map[string]interface{}{}, nil
	}
	s, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an object", errInvalidRequest, name)
	}
	return s.StructValue.AsMap(), nil
}

func stringList(items []string) []interface{} {
	out := make([]interface{}, 0, len(items))
	for _, s := range items {
		out = append(out, s)
	}
	return out
}

func intList(items []int) []interface{} {
	out := make([]interface{}, 0, len(items))
	for _, n := range items {
		out = append(out, n)
	}
	return out
}

func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
