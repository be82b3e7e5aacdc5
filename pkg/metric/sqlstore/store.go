// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package sqlstore keeps activity records in SQLite and answers the aggregate
// queries of metric.Accessor. Per-kind fields live in a JSON column and are
// read with json_extract.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-guided-progression/pkg/metric"
)

const dateLayout = "2006-01-02"

// Store is a SQLite-backed metric.Accessor and metric.Recorder.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for record dates, time windows and streaks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open connects to the SQLite database at path and creates the schema.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to activity database: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := New(db, opts...)
	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logrus.Infof("activity store opened at %s", path)
	return s, nil
}

// New wraps an existing connection. The schema must already exist.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initializeSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS activity_records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			recorded_on TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			fields TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create activity_records table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_activity_records_user_kind
		ON activity_records (user_id, kind, recorded_on)
	`)
	if err != nil {
		return fmt.Errorf("failed to create activity_records index: %w", err)
	}

	return nil
}

type recordRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Kind       string    `db:"kind"`
	RecordedOn string    `db:"recorded_on"`
	CreatedAt  time.Time `db:"created_at"`
	Fields     string    `db:"fields"`
}

// Insert saves a record. Missing id, date and creation time are filled in.
func (s *Store) Insert(ctx context.Context, record *metric.Record) error {
	if record.UserID == "" {
		return fmt.Errorf("record has no user id")
	}
	if err := metric.ValidateField(record.Kind); err != nil {
		return fmt.Errorf("record kind: %w", err)
	}

	now := s.now()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedOn.IsZero() {
		record.RecordedOn = dateOnly(now)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	fields, err := encodeFields(record.Fields)
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO activity_records (id, user_id, kind, recorded_on, created_at, fields)
		VALUES (:id, :user_id, :kind, :recorded_on, :created_at, :fields)
	`, recordRow{
		ID:         record.ID,
		UserID:     record.UserID,
		Kind:       record.Kind,
		RecordedOn: record.RecordedOn.Format(dateLayout),
		CreatedAt:  record.CreatedAt,
		Fields:     fields,
	})
	if err != nil {
		return fmt.Errorf("failed to insert %s record for user %s: %w", record.Kind, record.UserID, err)
	}

	logrus.Debugf("inserted %s record %s for user %s", record.Kind, record.ID, record.UserID)
	return nil
}

// Count implements metric.Accessor.
func (s *Store) Count(ctx context.Context, userID, kind string, filters ...metric.Filter) (int, error) {
	where, args, err := s.where(userID, kind, filters)
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM activity_records WHERE `+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", kind, err)
	}
	return n, nil
}

// Average implements metric.Accessor. Records without the field are ignored.
func (s *Store) Average(ctx context.Context, userID, kind, field string, filters ...metric.Filter) (float64, error) {
	if err := metric.ValidateField(field); err != nil {
		return 0, err
	}
	where, args, err := s.where(userID, kind, filters)
	if err != nil {
		return 0, err
	}

	var avg sql.NullFloat64
	query := `SELECT AVG(CAST(` + column(field) + ` AS REAL)) FROM activity_records WHERE ` + where
	if err := s.db.GetContext(ctx, &avg, query, args...); err != nil {
		return 0, fmt.Errorf("failed to average %s.%s: %w", kind, field, err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// Streak implements metric.Accessor.
func (s *Store) Streak(ctx context.Context, userID, kind string) (int, error) {
	var raw []string
	err := s.db.SelectContext(ctx, &raw, `
		SELECT DISTINCT recorded_on FROM activity_records
		WHERE user_id = ? AND kind = ?
		ORDER BY recorded_on DESC
	`, userID, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s days: %w", kind, err)
	}

	days := make([]time.Time, 0, len(raw))
	for _, d := range raw {
		day, err := time.Parse(dateLayout, d)
		if err != nil {
			logrus.Warnf("skipping malformed %s date %q for user %s", kind, d, userID)
			continue
		}
		days = append(days, day)
	}

	return consecutiveDays(days, dateOnly(s.now())), nil
}

// where builds the WHERE clause shared by every aggregate.
func (s *Store) where(userID, kind string, filters []metric.Filter) (string, []interface{}, error) {
	clauses := []string{"user_id = ?", "kind = ?"}
	args := []interface{}{userID, kind}

	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return "", nil, err
		}

		col := column(f.Field)
		switch f.Op {
		case metric.OpEq:
			clauses = append(clauses, col+" = ?")
			args = append(args, f.Value)
		case metric.OpGte:
			v, _ := metric.ToFloat(f.Value)
			clauses = append(clauses, col+" >= ?")
			args = append(args, v)
		case metric.OpLte:
			v, _ := metric.ToFloat(f.Value)
			clauses = append(clauses, col+" <= ?")
			args = append(args, v)
		case metric.OpSinceDays:
			clauses = append(clauses, "recorded_on >= ?")
			args = append(args, f.SinceDate(s.now()).Format(dateLayout))
		case metric.OpTimeBetween:
			join := " AND "
			if f.Wraps() {
				join = " OR "
			}
			clock := clockColumn(col)
			clauses = append(clauses, "("+clock+" >= ?"+join+clock+" <= ?)")
			args = append(args, f.From, f.To)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

// column maps a filter field to SQL. Field names are validated identifiers.
func column(field string) string {
	if field == metric.DateField {
		return "recorded_on"
	}
	return "json_extract(fields, '$." + field + "')"
}

// clockColumn normalizes a stored clock value to zero-padded HH:MM so "6:30"
// and "06:00:00" compare like the filter bounds. Other values become NULL.
func clockColumn(col string) string {
	return "(CASE WHEN typeof(" + col + ") = 'text' AND instr(" + col + ", ':') > 1 THEN printf('%02d:%02d', " +
		"CAST(substr(" + col + ", 1, instr(" + col + ", ':') - 1) AS INTEGER), " +
		"CAST(substr(" + col + ", instr(" + col + ", ':') + 1, 2) AS INTEGER)) END)"
}

func encodeFields(fields map[string]interface{}) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	for k := range fields {
		if err := metric.ValidateField(k); err != nil {
			return "", err
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode record fields: %w", err)
	}
	return string(data), nil
}

// dateOnly returns the UTC calendar day of t.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// consecutiveDays counts the run of days ending today or yesterday. days must
// be distinct and sorted newest first. Future dates are ignored.
func consecutiveDays(days []time.Time, today time.Time) int {
	streak := 0
	var expected time.Time

	for _, day := range days {
		if day.After(today) {
			continue
		}
		if streak == 0 {
			if !day.Equal(today) && !day.Equal(today.AddDate(0, 0, -1)) {
				return 0
			}
			expected = day
		}
		if !day.Equal(expected) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}

	return streak
}
