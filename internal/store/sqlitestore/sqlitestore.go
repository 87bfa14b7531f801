// Package sqlitestore implements internal/store.Store against a
// cgo-free embedded SQLite database, grounded on the modernc.org/sqlite
// dependency found across the retrieval pack's manifests (ManuGH-xg2g,
// dagu-org-dagu, snapetech-plexTuner) as the ecosystem's standard
// cgo-free driver choice.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kaislahattu/icmond/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	downstream_power_dbmv TEXT,
	downstream_snr_db TEXT,
	upstream_power_dbmv TEXT,
	internet_rtt_ms INTEGER,
	internet_loss INTEGER NOT NULL,
	exit_status INTEGER NOT NULL
);`

// Store wraps a *sql.DB opened against a modernc.org/sqlite connection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the database file at path and ensures
// the schema exists — this is also what the -createdb admin command
// invokes directly.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// InsertSample persists one probe result.
func (s *Store) InsertSample(ctx context.Context, sample store.Sample) error {
	var internetRTTms *int64
	if sample.InternetRTT != nil {
		ms := sample.InternetRTT.Milliseconds()
		internetRTTms = &ms
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (ts, downstream_power_dbmv, downstream_snr_db, upstream_power_dbmv, internet_rtt_ms, internet_loss, exit_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sample.Timestamp.Unix(),
		encodeFloatArray(sample.DownstreamPowerDBmV[:]),
		encodeFloatArray(sample.DownstreamSNRdB[:]),
		encodeFloatArray(sample.UpstreamPowerDBmV[:]),
		internetRTTms,
		boolToInt(sample.InternetLoss),
		sample.ExitStatus,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: insert sample: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlitestore: close: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeFloatArray renders a fixed array of nullable floats as a
// comma-separated string with empty fields for nil entries — sufficient
// for the out-of-scope schema this package exists only to exercise.
func encodeFloatArray(vals []*float64) string {
	out := ""
	for i, v := range vals {
		if i > 0 {
			out += ","
		}
		if v != nil {
			out += fmt.Sprintf("%.2f", *v)
		}
	}
	return out
}
