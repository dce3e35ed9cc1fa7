/*
Package sqlite provides a SQLite-backed implementation of quota.VersionedSource.

PURPOSE:
  Persists the rows the quota engine reads (time entries, holidays, time
  off, quota configs and dated quota versions) and answers the engine's
  overlap queries. Also carries the write side used by the API, the CLI
  and demo scenarios.

INTERFACES IMPLEMENTED:
  quota.Source:          FetchTimeEntries, FetchHolidays, FetchTimeOff, FetchActiveQuotas
  quota.VersionedSource: FetchQuotaVersions

KEY TABLES:
  time_entries:   Logged work, one row per block
  holidays:       Company holidays, optionally recurring via an RRULE
  time_off:       Personal unavailability
  quota_configs:  One current target per (scope, subject)
  quota_versions: Dated targets, read under Versioned resolution

DATES AND AMOUNTS:
  Dates are stored as YYYY-MM-DD text so lexical comparison is calendar
  comparison and the overlap predicates stay plain SQL. Hours are stored
  as decimal text and read back with decimal.NewFromString.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The postgres store relies on the
  database instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/quota.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  tracker := quota.NewTracker(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - quota/source.go: Interface definitions and overlap semantics
  - quota/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: Same contract on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
)

// Store implements quota.VersionedSource using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ quota.VersionedSource = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Time entries (many per person per day)
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		client_id TEXT NOT NULL DEFAULT '',
		sub_account_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		actual_hours TEXT NOT NULL,
		billed_hours TEXT NOT NULL DEFAULT '0',
		classification TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Month scans are the hot path for every view
	CREATE INDEX IF NOT EXISTS idx_time_entries_date
		ON time_entries(date);
	CREATE INDEX IF NOT EXISTS idx_time_entries_client_date
		ON time_entries(client_id, date);

	-- Holidays (one-off ranges or recurring rules)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		rule TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_start
		ON holidays(start_date);

	-- Personal time off
	CREATE TABLE IF NOT EXISTS time_off (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_time_off_person_dates
		ON time_off(person_id, start_date, end_date);

	-- Current quota per subject
	CREATE TABLE IF NOT EXISTS quota_configs (
		scope TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		monthly_target TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		invisible BOOLEAN NOT NULL DEFAULT FALSE,
		no_quota BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (scope, subject_id)
	);

	-- Dated quota history
	CREATE TABLE IF NOT EXISTS quota_versions (
		scope TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		monthly_target TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (scope, subject_id, effective_from)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// READS (quota.Source interface)
// =============================================================================

// FetchTimeEntries returns entries dated inside period that match filter.
func (s *Store) FetchTimeEntries(ctx context.Context, period calendar.Period, filter quota.EntryFilter) ([]quota.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, person_id, client_id, sub_account_id, date, actual_hours, billed_hours, classification
		FROM time_entries
		WHERE date >= ? AND date <= ?
	`
	args := []any{period.Start.String(), period.End.String()}
	if filter.PersonID != "" {
		query += " AND person_id = ?"
		args = append(args, filter.PersonID)
	}
	if filter.ClientID != "" {
		query += " AND client_id = ?"
		args = append(args, filter.ClientID)
	}
	if filter.SubAccountID != "" {
		query += " AND sub_account_id = ?"
		args = append(args, filter.SubAccountID)
	}
	query += " ORDER BY date ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []quota.TimeEntry
	for rows.Next() {
		var e quota.TimeEntry
		var dateStr, actual, billed, class string
		if err := rows.Scan(&e.ID, &e.PersonID, &e.ClientID, &e.SubAccountID, &dateStr, &actual, &billed, &class); err != nil {
			return nil, err
		}
		if e.Date, err = calendar.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("time entry %s: %w", e.ID, err)
		}
		if e.ActualHours, err = decimal.NewFromString(actual); err != nil {
			return nil, fmt.Errorf("time entry %s: actual hours: %w", e.ID, err)
		}
		if e.BilledHours, err = decimal.NewFromString(billed); err != nil {
			return nil, fmt.Errorf("time entry %s: billed hours: %w", e.ID, err)
		}
		e.Classification = quota.Classification(class)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FetchHolidays returns holidays overlapping period, plus every recurring
// holiday anchored on or before its end.
func (s *Store) FetchHolidays(ctx context.Context, period calendar.Period) ([]quota.HolidayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, start_date, end_date, active, rule
		FROM holidays
		WHERE start_date <= ?
		  AND (rule != '' OR COALESCE(end_date, start_date) >= ?)
		ORDER BY start_date ASC, id ASC
	`
	return s.queryHolidays(ctx, query, period.End.String(), period.Start.String())
}

// FetchTimeOff returns time off overlapping period, for one person or everyone.
func (s *Store) FetchTimeOff(ctx context.Context, personID string, period calendar.Period) ([]quota.TimeOffRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, person_id, start_date, end_date, COALESCE(reason, '')
		FROM time_off
		WHERE start_date <= ? AND end_date >= ?
	`
	args := []any{period.End.String(), period.Start.String()}
	if personID != "" {
		query += " AND person_id = ?"
		args = append(args, personID)
	}
	query += " ORDER BY person_id ASC, start_date ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []quota.TimeOffRecord
	for rows.Next() {
		var r quota.TimeOffRecord
		var start, end string
		if err := rows.Scan(&r.ID, &r.PersonID, &start, &end, &r.Reason); err != nil {
			return nil, err
		}
		if r.StartDate, err = calendar.ParseDate(start); err != nil {
			return nil, fmt.Errorf("time off %s: %w", r.ID, err)
		}
		if r.EndDate, err = calendar.ParseDate(end); err != nil {
			return nil, fmt.Errorf("time off %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// FetchActiveQuotas returns the active configs of scope ordered by subject.
func (s *Store) FetchActiveQuotas(ctx context.Context, scope quota.Scope) ([]quota.QuotaConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT scope, subject_id, parent_id, name, monthly_target, active, invisible, no_quota
		FROM quota_configs
		WHERE scope = ? AND active = TRUE
		ORDER BY subject_id ASC
	`
	return s.queryQuotas(ctx, query, string(scope))
}

// FetchQuotaVersions returns the latest version per subject effective on
// or before asOf.
func (s *Store) FetchQuotaVersions(ctx context.Context, scope quota.Scope, asOf calendar.Date) ([]quota.QuotaVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT v.scope, v.subject_id, v.effective_from, v.monthly_target
		FROM quota_versions v
		WHERE v.scope = ?
		  AND v.effective_from = (
			SELECT MAX(w.effective_from) FROM quota_versions w
			WHERE w.scope = v.scope AND w.subject_id = v.subject_id AND w.effective_from <= ?
		  )
		ORDER BY v.subject_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(scope), asOf.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []quota.QuotaVersion
	for rows.Next() {
		var v quota.QuotaVersion
		var scopeStr, from, target string
		if err := rows.Scan(&scopeStr, &v.SubjectID, &from, &target); err != nil {
			return nil, err
		}
		v.Scope = quota.Scope(scopeStr)
		if v.EffectiveFrom, err = calendar.ParseDate(from); err != nil {
			return nil, fmt.Errorf("quota version %s: %w", v.SubjectID, err)
		}
		if v.MonthlyTarget, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("quota version %s: %w", v.SubjectID, err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// =============================================================================
// TIME ENTRIES AND TIME OFF
// =============================================================================

// AddTimeEntries inserts entries in one transaction. Entries without an
// ID get a generated one.
func (s *Store) AddTimeEntries(ctx context.Context, entries ...quota.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO time_entries (id, person_id, client_id, sub_account_id, date, actual_hours, billed_hours, classification, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().Format(time.RFC3339)
		for _, e := range entries {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			_, err := stmt.ExecContext(ctx,
				e.ID, e.PersonID, e.ClientID, e.SubAccountID, e.Date.String(),
				e.ActualHours.String(), e.BilledHours.String(), string(e.Classification), now,
			)
			if err != nil {
				if isUniqueConstraintError(err) {
					return fmt.Errorf("time entry %s already exists: %w", e.ID, err)
				}
				return err
			}
		}
		return nil
	})
}

// AddTimeOff inserts time-off records. Records without an ID get a generated one.
func (s *Store) AddTimeOff(ctx context.Context, records ...quota.TimeOffRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().Format(time.RFC3339)
		for _, r := range records {
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO time_off (id, person_id, start_date, end_date, reason, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					person_id = excluded.person_id,
					start_date = excluded.start_date,
					end_date = excluded.end_date,
					reason = excluded.reason
			`, r.ID, r.PersonID, r.StartDate.String(), r.EndDate.String(), nullString(r.Reason), now)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// SaveHoliday inserts or replaces a holiday by ID.
func (s *Store) SaveHoliday(ctx context.Context, h quota.HolidayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, name, start_date, end_date, active, rule, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			active = excluded.active,
			rule = excluded.rule
	`

	var end sql.NullString
	if h.EndDate != nil && !h.EndDate.IsZero() {
		end = sql.NullString{String: h.EndDate.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		h.Name,
		h.StartDate.String(),
		end,
		h.Active,
		h.Rule,
		time.Now().Format(time.RFC3339),
	)
	return err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", quota.ErrHolidayNotFound, id)
	}
	return nil
}

// GetHoliday returns a single holiday.
func (s *Store) GetHoliday(ctx context.Context, id string) (*quota.HolidayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holidays, err := s.queryHolidays(ctx, `
		SELECT id, name, start_date, end_date, active, rule
		FROM holidays WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(holidays) == 0 {
		return nil, fmt.Errorf("%w: %s", quota.ErrHolidayNotFound, id)
	}
	return &holidays[0], nil
}

// ListHolidays returns every holiday, active or not (for admin UI).
func (s *Store) ListHolidays(ctx context.Context) ([]quota.HolidayRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryHolidays(ctx, `
		SELECT id, name, start_date, end_date, active, rule
		FROM holidays
		ORDER BY start_date ASC, name ASC
	`)
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]quota.HolidayRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []quota.HolidayRecord
	for rows.Next() {
		var h quota.HolidayRecord
		var start string
		var end sql.NullString
		if err := rows.Scan(&h.ID, &h.Name, &start, &end, &h.Active, &h.Rule); err != nil {
			return nil, err
		}
		if h.StartDate, err = calendar.ParseDate(start); err != nil {
			return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
		}
		if end.Valid {
			d, err := calendar.ParseDate(end.String)
			if err != nil {
				return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
			}
			h.EndDate = &d
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// QUOTA CONFIGURATION
// =============================================================================

// SaveQuota inserts or replaces the current config of a subject.
func (s *Store) SaveQuota(ctx context.Context, q quota.QuotaConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO quota_configs (scope, subject_id, parent_id, name, monthly_target, active, invisible, no_quota, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope, subject_id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			monthly_target = excluded.monthly_target,
			active = excluded.active,
			invisible = excluded.invisible,
			no_quota = excluded.no_quota,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		string(q.Scope), q.SubjectID, q.ParentID, q.Name, q.MonthlyTarget.String(),
		q.Active, q.Invisible, q.NoQuota, time.Now().Format(time.RFC3339),
	)
	return err
}

// ListQuotas returns every config of scope, active or not.
func (s *Store) ListQuotas(ctx context.Context, scope quota.Scope) ([]quota.QuotaConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryQuotas(ctx, `
		SELECT scope, subject_id, parent_id, name, monthly_target, active, invisible, no_quota
		FROM quota_configs
		WHERE scope = ?
		ORDER BY subject_id ASC
	`, string(scope))
}

// SaveQuotaVersion records a dated target. A second version on the same
// date replaces the first.
func (s *Store) SaveQuotaVersion(ctx context.Context, v quota.QuotaVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quota_versions (scope, subject_id, effective_from, monthly_target, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scope, subject_id, effective_from) DO UPDATE SET
			monthly_target = excluded.monthly_target
	`, string(v.Scope), v.SubjectID, v.EffectiveFrom.String(), v.MonthlyTarget.String(), time.Now().Format(time.RFC3339))
	return err
}

func (s *Store) queryQuotas(ctx context.Context, query string, args ...any) ([]quota.QuotaConfig, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []quota.QuotaConfig
	for rows.Next() {
		var q quota.QuotaConfig
		var scope, target string
		if err := rows.Scan(&scope, &q.SubjectID, &q.ParentID, &q.Name, &target, &q.Active, &q.Invisible, &q.NoQuota); err != nil {
			return nil, err
		}
		q.Scope = quota.Scope(scope)
		if q.MonthlyTarget, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("quota %s/%s: %w", scope, q.SubjectID, err)
		}
		configs = append(configs, q)
	}
	return configs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"time_entries", "holidays", "time_off", "quota_configs", "quota_versions"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error. Callers hold s.mu.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
