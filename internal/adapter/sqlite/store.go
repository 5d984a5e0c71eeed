// Package sqlite stores observed and archived forecast rainfall series in a
// SQLite database laid out like the CUrW observation database: a run table of
// series metadata and a data table of (run_id, time, value) points.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/raincell-etl/internal/domain"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Times are stored as UTC text so that range queries compare lexically.
const timeLayout = "2006-01-02 15:04:05"

// Store reads and writes rainfall series.
// It implements pipeline.ObservationSource.
type Store struct {
	db         *sql.DB
	logger     *slog.Logger
	maxRetries uint64
	maxElapsed time.Duration
}

// New wraps an open database.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger, maxRetries: 5, maxElapsed: 30 * time.Second}
}

// Open opens the database file at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open observation db %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure observation db: %w", err)
	}
	return db, nil
}

// Retrieve returns the samples of series d with from <= time <= to, ordered
// by time. An unknown series yields no samples. Lock contention is retried
// with exponential backoff until ctx is done.
func (s *Store) Retrieve(ctx context.Context, d domain.SeriesDescriptor, from, to time.Time) ([]domain.Sample, error) {
	var out []domain.Sample
	err := s.retry(ctx, func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, `
			SELECT d.time, d.value
			FROM data d
			JOIN run r ON r.id = d.run_id
			WHERE r.station = ? AND r.variable = ? AND r.unit = ?
			  AND r.type = ? AND r.source = ? AND r.name = ?
			  AND d.time >= ? AND d.time <= ?
			ORDER BY d.time
		`, d.Station, d.Variable, d.Unit, d.Type, d.Source, d.Name,
			from.UTC().Format(timeLayout), to.UTC().Format(timeLayout))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ts string
			var v float64
			if err := rows.Scan(&ts, &v); err != nil {
				return err
			}
			t, err := time.ParseInLocation(timeLayout, ts, time.UTC)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("parse time %q: %w", ts, err))
			}
			out = append(out, domain.Sample{Time: t, Value: v})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve %s/%s/%s: %w", d.Station, d.Type, d.Source, err)
	}
	return out, nil
}

// UpsertSeries creates series d if needed and writes samples into it,
// replacing values at existing timestamps.
func (s *Store) UpsertSeries(ctx context.Context, d domain.SeriesDescriptor, samples []domain.Sample) error {
	return s.retry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run (station, variable, unit, type, source, name)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(station, variable, unit, type, source, name) DO NOTHING
		`, d.Station, d.Variable, d.Unit, d.Type, d.Source, d.Name); err != nil {
			return err
		}

		var runID int64
		if err := tx.QueryRowContext(ctx, `
			SELECT id FROM run
			WHERE station = ? AND variable = ? AND unit = ? AND type = ? AND source = ? AND name = ?
		`, d.Station, d.Variable, d.Unit, d.Type, d.Source, d.Name).Scan(&runID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO data (run_id, time, value) VALUES (?, ?, ?)
			ON CONFLICT(run_id, time) DO UPDATE SET value = excluded.value
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, smp := range samples {
			if _, err := stmt.ExecContext(ctx, runID, smp.Time.UTC().Format(timeLayout), smp.Value); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE run SET
				start_date = (SELECT MIN(time) FROM data WHERE run_id = ?),
				end_date = (SELECT MAX(time) FROM data WHERE run_id = ?)
			WHERE id = ?
		`, runID, runID, runID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// retry runs op until it succeeds, fails with a non-transient error, or the
// retry budget or ctx runs out.
func (s *Store) retry(ctx context.Context, op func() error) error {
	operation := func() error {
		err := op()
		if err == nil || isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = s.maxElapsed
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("observation db busy, retrying", "error", err, "wait", wait)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(bo, s.maxRetries), ctx), notify)
}

func isTransient(err error) bool {
	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
