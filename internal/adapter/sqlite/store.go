// Package sqlite keeps the latest run's region records in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS region_records (
	id                    INTEGER PRIMARY KEY,
	observation_timestamp TEXT    NOT NULL,
	municipality          TEXT    NOT NULL,
	intensity             TEXT    NOT NULL,
	latitude              REAL    NOT NULL,
	longitude             REAL    NOT NULL,
	cluster               INTEGER NOT NULL,
	satellite             TEXT    NOT NULL DEFAULT ''
)`

// Store replaces the region_records table with each run's records.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite %s: %w", path, err)
		}
	}

	logger.Info("sqlite store ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Load replaces the table contents in one transaction, so readers see either
// the previous run or this one.
func (s *Store) Load(ctx context.Context, records []domain.RegionRecord) error {
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM region_records"); err != nil {
			return fmt.Errorf("clear region_records: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO region_records
			(id, observation_timestamp, municipality, intensity, latitude, longitude, cluster, satellite)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, r := range records {
			if _, err := stmt.ExecContext(ctx, i+1, r.ObservationTimestamp, r.Municipality,
				string(r.Intensity), r.Latitude, r.Longitude, r.Cluster, r.Satellite); err != nil {
				return fmt.Errorf("insert record %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("stored region records", "count", len(records))
	return nil
}

// Records returns the stored records in output order.
func (s *Store) Records(ctx context.Context) ([]domain.RegionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT observation_timestamp, municipality, intensity,
		latitude, longitude, cluster, satellite FROM region_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query region_records: %w", err)
	}
	defer rows.Close()

	var records []domain.RegionRecord
	for rows.Next() {
		var (
			r         domain.RegionRecord
			intensity string
		)
		if err := rows.Scan(&r.ObservationTimestamp, &r.Municipality, &intensity,
			&r.Latitude, &r.Longitude, &r.Cluster, &r.Satellite); err != nil {
			return nil, fmt.Errorf("scan region record: %w", err)
		}
		r.Intensity = domain.IntensityLabel(intensity)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
