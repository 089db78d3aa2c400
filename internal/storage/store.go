// Package storage persists analysis runs in an embedded SQLite
// database: regularized series, threshold curves, drought events and
// the summary indices. Threshold curves are stored as msgpack blobs.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/hydronet/catchflow/pkg/drought"
	"github.com/hydronet/catchflow/pkg/timeseries"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	station     TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	method      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS series (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	name    TEXT NOT NULL,
	ts      TIMESTAMP NOT NULL,
	value   REAL,
	PRIMARY KEY (run_id, name, ts)
);
CREATE TABLE IF NOT EXISTS thresholds (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	method  TEXT NOT NULL,
	curve   BLOB NOT NULL,
	PRIMARY KEY (run_id, method)
);
CREATE TABLE IF NOT EXISTS drought_events (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	start    TIMESTAMP NOT NULL,
	days     INTEGER NOT NULL,
	deficit  REAL NOT NULL,
	PRIMARY KEY (run_id, start)
);
CREATE TABLE IF NOT EXISTS indices (
	run_id             TEXT PRIMARY KEY REFERENCES runs(id),
	years              REAL,
	mean_annual_total  REAL,
	std_annual_total   REAL,
	droughts_per_year  REAL,
	mean_duration      REAL,
	std_duration       REAL,
	max_duration       REAL,
	mean_deficit       REAL,
	std_deficit        REAL,
	worst_deficit      REAL
);
`

// Run identifies one stored analysis run.
type Run struct {
	ID        string         `json:"id"`
	Station   string         `json:"station"`
	CreatedAt time.Time      `json:"created_at"`
	Method    drought.Method `json:"method"`
}

// Store is an embedded result database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateRun registers a new run and returns its identifier.
func (s *Store) CreateRun(station string, method drought.Method) (Run, error) {
	run := Run{
		ID:        uuid.New().String(),
		Station:   station,
		CreatedAt: time.Now().UTC(),
		Method:    method,
	}
	_, err := s.db.Exec(`INSERT INTO runs (id, station, created_at, method) VALUES (?, ?, ?, ?)`,
		run.ID, run.Station, run.CreatedAt, string(run.Method))
	if err != nil {
		return Run{}, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// ListRuns returns all stored runs, newest first.
func (s *Store) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, station, created_at, method FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var method string
		if err := rows.Scan(&r.ID, &r.Station, &r.CreatedAt, &method); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Method = drought.Method(method)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveSeries stores a named series under a run. Missing values are
// stored as NULL.
func (s *Store) SaveSeries(runID, name string, series timeseries.Series) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO series (run_id, name, ts, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, smp := range series {
		var v sql.NullFloat64
		if !timeseries.IsMissing(smp.Value) {
			v = sql.NullFloat64{Float64: smp.Value, Valid: true}
		}
		if _, err := stmt.Exec(runID, name, smp.Time, v); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert series sample: %w", err)
		}
	}
	return tx.Commit()
}

// LoadSeries retrieves a named series of a run in time order.
func (s *Store) LoadSeries(runID, name string) (timeseries.Series, error) {
	rows, err := s.db.Query(`SELECT ts, value FROM series WHERE run_id = ? AND name = ? ORDER BY ts`, runID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var series timeseries.Series
	for rows.Next() {
		var ts time.Time
		var v sql.NullFloat64
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		value := timeseries.Missing()
		if v.Valid {
			value = v.Float64
		}
		series = append(series, timeseries.Sample{Time: ts, Value: value})
	}
	return series, rows.Err()
}

// SaveThresholds stores all four curves of a threshold set.
func (s *Store) SaveThresholds(runID string, set drought.ThresholdSet) error {
	curves := map[drought.Method][]float64{
		drought.MethodDMA: set.DMA,
		drought.MethodMMA: set.MMA,
		drought.MethodD30: set.D30,
		drought.MethodFFT: set.FFT,
	}
	for method, curve := range curves {
		blob, err := msgpack.Marshal(curve)
		if err != nil {
			return fmt.Errorf("failed to encode %s curve: %w", method, err)
		}
		_, err = s.db.Exec(`INSERT OR REPLACE INTO thresholds (run_id, method, curve) VALUES (?, ?, ?)`,
			runID, string(method), blob)
		if err != nil {
			return fmt.Errorf("failed to store %s curve: %w", method, err)
		}
	}
	return nil
}

// LoadThreshold retrieves one threshold curve of a run.
func (s *Store) LoadThreshold(runID string, method drought.Method) ([]float64, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT curve FROM thresholds WHERE run_id = ? AND method = ?`,
		runID, string(method)).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s curve: %w", method, err)
	}
	var curve []float64
	if err := msgpack.Unmarshal(blob, &curve); err != nil {
		return nil, fmt.Errorf("failed to decode %s curve: %w", method, err)
	}
	return curve, nil
}

// SaveDroughtEvents stores the surviving drought events of a run.
func (s *Store) SaveDroughtEvents(runID string, events []drought.Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, ev := range events {
		_, err := tx.Exec(`INSERT INTO drought_events (run_id, start, days, deficit) VALUES (?, ?, ?, ?)`,
			runID, ev.Start, ev.Days, ev.Deficit)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert drought event: %w", err)
		}
	}
	return tx.Commit()
}

// LoadDroughtEvents retrieves a run's drought events in start order.
func (s *Store) LoadDroughtEvents(runID string) ([]drought.Event, error) {
	rows, err := s.db.Query(`SELECT start, days, deficit FROM drought_events WHERE run_id = ? ORDER BY start`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query drought events: %w", err)
	}
	defer rows.Close()

	var events []drought.Event
	for rows.Next() {
		var ev drought.Event
		if err := rows.Scan(&ev.Start, &ev.Days, &ev.Deficit); err != nil {
			return nil, fmt.Errorf("failed to scan drought event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SaveIndices stores the summary indices of a run. NaN statistics are
// stored as NULL so "undefined" survives the round trip.
func (s *Store) SaveIndices(runID string, idx drought.Indices) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO indices
		(run_id, years, mean_annual_total, std_annual_total, droughts_per_year,
		 mean_duration, std_duration, max_duration, mean_deficit, std_deficit, worst_deficit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		nullable(idx.Years), nullable(idx.MeanAnnualTotal), nullable(idx.StdAnnualTotal),
		nullable(idx.DroughtsPerYear), nullable(idx.MeanDuration), nullable(idx.StdDuration),
		nullable(idx.MaxDuration), nullable(idx.MeanDeficit), nullable(idx.StdDeficit),
		nullable(idx.WorstDeficit))
	if err != nil {
		return fmt.Errorf("failed to store indices: %w", err)
	}
	return nil
}

// LoadIndices retrieves the summary indices of a run.
func (s *Store) LoadIndices(runID string) (drought.Indices, error) {
	var idx drought.Indices
	var fields [10]sql.NullFloat64
	err := s.db.QueryRow(`SELECT years, mean_annual_total, std_annual_total, droughts_per_year,
		mean_duration, std_duration, max_duration, mean_deficit, std_deficit, worst_deficit
		FROM indices WHERE run_id = ?`, runID).Scan(
		&fields[0], &fields[1], &fields[2], &fields[3], &fields[4],
		&fields[5], &fields[6], &fields[7], &fields[8], &fields[9])
	if err != nil {
		return idx, fmt.Errorf("failed to load indices: %w", err)
	}
	idx.Years = fromNullable(fields[0])
	idx.MeanAnnualTotal = fromNullable(fields[1])
	idx.StdAnnualTotal = fromNullable(fields[2])
	idx.DroughtsPerYear = fromNullable(fields[3])
	idx.MeanDuration = fromNullable(fields[4])
	idx.StdDuration = fromNullable(fields[5])
	idx.MaxDuration = fromNullable(fields[6])
	idx.MeanDeficit = fromNullable(fields[7])
	idx.StdDeficit = fromNullable(fields[8])
	idx.WorstDeficit = fromNullable(fields[9])
	return idx, nil
}

func nullable(v float64) sql.NullFloat64 {
	if timeseries.IsMissing(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return timeseries.Missing()
	}
	return v.Float64
}
