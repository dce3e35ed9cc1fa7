/*
Package postgres provides a PostgreSQL-backed quota.VersionedSource.

PURPOSE:
  Same contract and schema shape as store/sqlite, using native DATE and
  NUMERIC columns and a pgx connection pool. Concurrency control is left
  to the database, so there is no process-level lock.

KEY TABLES:
  time_entries, holidays, time_off, quota_configs, quota_versions
  (see store/sqlite for the column meanings)

NUMERIC HANDLING:
  NUMERIC columns are selected as ::text and parsed with
  decimal.NewFromString, so no precision is lost in transit.

SEE ALSO:
  - quota/source.go: Interface definitions and overlap semantics
  - store/sqlite/sqlite.go: Default embedded store
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/quota"
)

// Store implements quota.VersionedSource on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ quota.VersionedSource = (*Store)(nil)

// New connects to dsn and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		client_id TEXT NOT NULL DEFAULT '',
		sub_account_id TEXT NOT NULL DEFAULT '',
		date DATE NOT NULL,
		actual_hours NUMERIC(10,2) NOT NULL,
		billed_hours NUMERIC(10,2) NOT NULL DEFAULT 0,
		classification TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_time_entries_date ON time_entries(date);
	CREATE INDEX IF NOT EXISTS idx_time_entries_client_date ON time_entries(client_id, date);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		rule TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_holidays_start ON holidays(start_date);

	CREATE TABLE IF NOT EXISTS time_off (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_time_off_person_dates ON time_off(person_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS quota_configs (
		scope TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		monthly_target NUMERIC(10,2) NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		invisible BOOLEAN NOT NULL DEFAULT FALSE,
		no_quota BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (scope, subject_id)
	);

	CREATE TABLE IF NOT EXISTS quota_versions (
		scope TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		effective_from DATE NOT NULL,
		monthly_target NUMERIC(10,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (scope, subject_id, effective_from)
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// READS (quota.Source interface)
// =============================================================================

func (s *Store) FetchTimeEntries(ctx context.Context, period calendar.Period, filter quota.EntryFilter) ([]quota.TimeEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, person_id, client_id, sub_account_id, date, actual_hours::text, billed_hours::text, classification
		FROM time_entries
		WHERE date BETWEEN $1 AND $2
		  AND ($3 = '' OR person_id = $3)
		  AND ($4 = '' OR client_id = $4)
		  AND ($5 = '' OR sub_account_id = $5)
		ORDER BY date, id
	`, period.Start.Time(), period.End.Time(), filter.PersonID, filter.ClientID, filter.SubAccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []quota.TimeEntry
	for rows.Next() {
		var e quota.TimeEntry
		var day time.Time
		var actual, billed, class string
		if err := rows.Scan(&e.ID, &e.PersonID, &e.ClientID, &e.SubAccountID, &day, &actual, &billed, &class); err != nil {
			return nil, err
		}
		e.Date = calendar.DateOf(day)
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

func (s *Store) FetchHolidays(ctx context.Context, period calendar.Period) ([]quota.HolidayRecord, error) {
	return s.queryHolidays(ctx, `
		SELECT id, name, start_date, end_date, active, rule
		FROM holidays
		WHERE start_date <= $1
		  AND (rule <> '' OR COALESCE(end_date, start_date) >= $2)
		ORDER BY start_date, id
	`, period.End.Time(), period.Start.Time())
}

func (s *Store) FetchTimeOff(ctx context.Context, personID string, period calendar.Period) ([]quota.TimeOffRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, person_id, start_date, end_date, reason
		FROM time_off
		WHERE start_date <= $1 AND end_date >= $2
		  AND ($3 = '' OR person_id = $3)
		ORDER BY person_id, start_date
	`, period.End.Time(), period.Start.Time(), personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []quota.TimeOffRecord
	for rows.Next() {
		var r quota.TimeOffRecord
		var start, end time.Time
		if err := rows.Scan(&r.ID, &r.PersonID, &start, &end, &r.Reason); err != nil {
			return nil, err
		}
		r.StartDate = calendar.DateOf(start)
		r.EndDate = calendar.DateOf(end)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) FetchActiveQuotas(ctx context.Context, scope quota.Scope) ([]quota.QuotaConfig, error) {
	return s.queryQuotas(ctx, `
		SELECT scope, subject_id, parent_id, name, monthly_target::text, active, invisible, no_quota
		FROM quota_configs
		WHERE scope = $1 AND active
		ORDER BY subject_id
	`, string(scope))
}

func (s *Store) FetchQuotaVersions(ctx context.Context, scope quota.Scope, asOf calendar.Date) ([]quota.QuotaVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (subject_id) scope, subject_id, effective_from, monthly_target::text
		FROM quota_versions
		WHERE scope = $1 AND effective_from <= $2
		ORDER BY subject_id, effective_from DESC
	`, string(scope), asOf.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []quota.QuotaVersion
	for rows.Next() {
		var v quota.QuotaVersion
		var scopeStr, target string
		var from time.Time
		if err := rows.Scan(&scopeStr, &v.SubjectID, &from, &target); err != nil {
			return nil, err
		}
		v.Scope = quota.Scope(scopeStr)
		v.EffectiveFrom = calendar.DateOf(from)
		if v.MonthlyTarget, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("quota version %s: %w", v.SubjectID, err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// =============================================================================
// WRITES
// =============================================================================

// AddTimeEntries inserts entries in one batch transaction.
func (s *Store) AddTimeEntries(ctx context.Context, entries ...quota.TimeEntry) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			batch.Queue(`
				INSERT INTO time_entries (id, person_id, client_id, sub_account_id, date, actual_hours, billed_hours, classification)
				VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8)
			`, e.ID, e.PersonID, e.ClientID, e.SubAccountID, e.Date.Time(),
				e.ActualHours.String(), e.BilledHours.String(), string(e.Classification))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// AddTimeOff upserts time-off records.
func (s *Store) AddTimeOff(ctx context.Context, records ...quota.TimeOffRecord) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, r := range records {
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO time_off (id, person_id, start_date, end_date, reason)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET
					person_id = EXCLUDED.person_id,
					start_date = EXCLUDED.start_date,
					end_date = EXCLUDED.end_date,
					reason = EXCLUDED.reason
			`, r.ID, r.PersonID, r.StartDate.Time(), r.EndDate.Time(), r.Reason)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SaveHoliday(ctx context.Context, h quota.HolidayRecord) error {
	var end *time.Time
	if h.EndDate != nil && !h.EndDate.IsZero() {
		t := h.EndDate.Time()
		end = &t
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO holidays (id, name, start_date, end_date, active, rule)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			active = EXCLUDED.active,
			rule = EXCLUDED.rule
	`, h.ID, h.Name, h.StartDate.Time(), end, h.Active, h.Rule)
	return err
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM holidays WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", quota.ErrHolidayNotFound, id)
	}
	return nil
}

func (s *Store) GetHoliday(ctx context.Context, id string) (*quota.HolidayRecord, error) {
	var h quota.HolidayRecord
	var start time.Time
	var end *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, active, rule FROM holidays WHERE id = $1
	`, id).Scan(&h.ID, &h.Name, &start, &end, &h.Active, &h.Rule)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", quota.ErrHolidayNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	h.StartDate = calendar.DateOf(start)
	if end != nil {
		d := calendar.DateOf(*end)
		h.EndDate = &d
	}
	return &h, nil
}

func (s *Store) ListHolidays(ctx context.Context) ([]quota.HolidayRecord, error) {
	return s.queryHolidays(ctx, `
		SELECT id, name, start_date, end_date, active, rule
		FROM holidays
		ORDER BY start_date, name
	`)
}

func (s *Store) SaveQuota(ctx context.Context, q quota.QuotaConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quota_configs (scope, subject_id, parent_id, name, monthly_target, active, invisible, no_quota, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, now())
		ON CONFLICT (scope, subject_id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			name = EXCLUDED.name,
			monthly_target = EXCLUDED.monthly_target,
			active = EXCLUDED.active,
			invisible = EXCLUDED.invisible,
			no_quota = EXCLUDED.no_quota,
			updated_at = now()
	`, string(q.Scope), q.SubjectID, q.ParentID, q.Name, q.MonthlyTarget.String(), q.Active, q.Invisible, q.NoQuota)
	return err
}

func (s *Store) ListQuotas(ctx context.Context, scope quota.Scope) ([]quota.QuotaConfig, error) {
	return s.queryQuotas(ctx, `
		SELECT scope, subject_id, parent_id, name, monthly_target::text, active, invisible, no_quota
		FROM quota_configs
		WHERE scope = $1
		ORDER BY subject_id
	`, string(scope))
}

func (s *Store) SaveQuotaVersion(ctx context.Context, v quota.QuotaVersion) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quota_versions (scope, subject_id, effective_from, monthly_target)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (scope, subject_id, effective_from) DO UPDATE SET
			monthly_target = EXCLUDED.monthly_target
	`, string(v.Scope), v.SubjectID, v.EffectiveFrom.Time(), v.MonthlyTarget.String())
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE time_entries, holidays, time_off, quota_configs, quota_versions`)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]quota.HolidayRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []quota.HolidayRecord
	for rows.Next() {
		var h quota.HolidayRecord
		var start time.Time
		var end *time.Time
		if err := rows.Scan(&h.ID, &h.Name, &start, &end, &h.Active, &h.Rule); err != nil {
			return nil, err
		}
		h.StartDate = calendar.DateOf(start)
		if end != nil {
			d := calendar.DateOf(*end)
			h.EndDate = &d
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

func (s *Store) queryQuotas(ctx context.Context, query string, args ...any) ([]quota.QuotaConfig, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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
