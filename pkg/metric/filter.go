// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package metric

import (
	"fmt"
	"regexp"
	"time"
)

// Op is a filter operator. Every operator applies to a single field.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"

	// OpSinceDays keeps records dated on or after today minus Value days.
	OpSinceDays Op = "since_days"

	// OpTimeBetween keeps records whose "HH:MM" field falls inside [From, To].
	// The window wraps past midnight when From > To.
	OpTimeBetween Op = "time_between"
)

// DateField names the record date column rather than an entry in the field bag.
const DateField = "date"

var fieldPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Filter restricts the records an aggregate reads.
type Filter struct {
	Field string      `yaml:"field,omitempty" json:"field,omitempty"`
	Op    Op          `yaml:"op" json:"op"`
	Value interface{} `yaml:"value,omitempty" json:"value,omitempty"`
	From  string      `yaml:"from,omitempty" json:"from,omitempty"`
	To    string      `yaml:"to,omitempty" json:"to,omitempty"`
}

func Eq(field string, value interface{}) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

func Gte(field string, value float64) Filter { return Filter{Field: field, Op: OpGte, Value: value} }

func Lte(field string, value float64) Filter { return Filter{Field: field, Op: OpLte, Value: value} }

// SinceDays keeps records from the last n days, today included.
func SinceDays(n int) Filter { return Filter{Field: DateField, Op: OpSinceDays, Value: n} }

// TimeBetween keeps records whose clock field lies in the window [from, to].
func TimeBetween(field, from, to string) Filter {
	return Filter{Field: field, Op: OpTimeBetween, From: from, To: to}
}

// Validate checks the operator, the field name and the value shape.
func (f Filter) Validate() error {
	if err := ValidateField(f.Field); err != nil {
		return err
	}

	switch f.Op {
	case OpEq:
		if f.Value == nil {
			return fmt.Errorf("%w: eq on %s has no value", ErrInvalidFilter, f.Field)
		}
	case OpGte, OpLte:
		if _, ok := ToFloat(f.Value); !ok {
			return fmt.Errorf("%w: %s on %s needs a number, got %T", ErrInvalidFilter, f.Op, f.Field, f.Value)
		}
	case OpSinceDays:
		if f.Field != DateField {
			return fmt.Errorf("%w: since_days applies to %q only", ErrInvalidFilter, DateField)
		}
		days, ok := ToFloat(f.Value)
		if !ok || days < 0 {
			return fmt.Errorf("%w: since_days needs a non-negative day count", ErrInvalidFilter)
		}
	case OpTimeBetween:
		if !clockPattern.MatchString(f.From) || !clockPattern.MatchString(f.To) {
			return fmt.Errorf("%w: time_between on %s needs HH:MM bounds, got %q..%q",
				ErrInvalidFilter, f.Field, f.From, f.To)
		}
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, f.Op)
	}

	return nil
}

// Wraps reports whether a time_between window crosses midnight.
func (f Filter) Wraps() bool {
	return f.Op == OpTimeBetween && f.From > f.To
}

// SinceDate returns the first UTC calendar day kept by a since_days filter.
// Records are dated in UTC days too.
func (f Filter) SinceDate(now time.Time) time.Time {
	days, _ := ToFloat(f.Value)
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -int(days))
}

// ValidateField rejects anything that is not a lower-case identifier.
func ValidateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}

// ToFloat converts the numeric types a YAML or JSON decoder may produce.
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
