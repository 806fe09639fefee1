package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oogsj/coastwatch/internal/domain"
)

// Postgres implements Catalog, Measurements, TaskRuns, and Documents on a
// pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool

	mu    sync.RWMutex
	cache map[domain.SensorIdentity]int64
}

// New opens a connection pool and verifies connectivity.
func New(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, &domain.StorageError{Op: "open pool", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &domain.StorageError{Op: "ping", Err: err}
	}
	return &Postgres{
		pool:  pool,
		cache: make(map[domain.SensorIdentity]int64),
	}, nil
}

// NewWithPool wraps an existing pool (used by tests and one-shot commands).
func NewWithPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool:  pool,
		cache: make(map[domain.SensorIdentity]int64),
	}
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// CheckReadiness reports whether the database is reachable.
func (p *Postgres) CheckReadiness(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// ResolveSensor maps a sensor identity to its catalog id, creating the
// variable, unit, and sensor rows on first sight. All lookups and creates
// run in one transaction so a partial failure leaves no orphan rows.
// Creates use insert-or-return-existing so concurrent adapters resolving
// the same identity cannot race into duplicates.
func (p *Postgres) ResolveSensor(ctx context.Context, id domain.SensorIdentity) (int64, error) {
	p.mu.RLock()
	sensorID, ok := p.cache[id]
	p.mu.RUnlock()
	if ok {
		return sensorID, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, &domain.StorageError{Op: "begin resolve", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	var platformID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM platform WHERE name = $1`, id.Platform,
	).Scan(&platformID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &domain.ConfigError{
			Err: fmt.Errorf("platform %q not found in catalog", id.Platform),
		}
	}
	if err != nil {
		return 0, &domain.StorageError{Op: "lookup platform", Err: err}
	}

	// The DO UPDATE no-op makes RETURNING yield the existing id on conflict.
	var variableID int64
	err = tx.QueryRow(ctx, `
INSERT INTO variable (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`, id.Variable,
	).Scan(&variableID)
	if err != nil {
		return 0, &domain.StorageError{Op: "resolve variable", Err: err}
	}

	var unitID int64
	err = tx.QueryRow(ctx, `
INSERT INTO unit (name, symbol) VALUES ($1, $2)
ON CONFLICT (symbol) DO UPDATE SET symbol = EXCLUDED.symbol
RETURNING id`, id.Unit.Name, id.Unit.Symbol,
	).Scan(&unitID)
	if err != nil {
		return 0, &domain.StorageError{Op: "resolve unit", Err: err}
	}

	err = tx.QueryRow(ctx, `
INSERT INTO sensor (platform_id, variable_id, unit_id, name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`, platformID, variableID, unitID, id.Sensor,
	).Scan(&sensorID)
	if err != nil {
		return 0, &domain.StorageError{Op: "resolve sensor", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &domain.StorageError{Op: "commit resolve", Err: err}
	}

	p.mu.Lock()
	p.cache[id] = sensorID
	p.mu.Unlock()

	return sensorID, nil
}

// UpsertReadings bulk-inserts measurements in a single batched round trip.
// Conflicts on (sensor_id, timestamp) are no-ops, which is what makes
// re-running an adapter harmless.
func (p *Postgres) UpsertReadings(ctx context.Context, rows []Measurement) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
INSERT INTO measurement (sensor_id, timestamp, value, quality_flag, processing_level_id, location_id)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (sensor_id, timestamp) DO NOTHING`

	for _, m := range rows {
		batch.Queue(query,
			m.SensorID, m.Timestamp.UTC(), m.Value,
			m.QualityFlag, m.ProcessingLevelID, m.LocationID,
		)
	}

	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()

	var inserted int64
	for range rows {
		tag, err := res.Exec()
		if err != nil {
			return inserted, &domain.StorageError{Op: "upsert measurements", Err: err}
		}
		inserted += tag.RowsAffected()
	}

	return inserted, nil
}

// LatestTimestamp returns the newest measurement timestamp for a sensor,
// or nil if none exist.
func (p *Postgres) LatestTimestamp(ctx context.Context, sensorID int64) (*time.Time, error) {
	var ts *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT MAX(timestamp) FROM measurement WHERE sensor_id = $1`, sensorID,
	).Scan(&ts)
	if err != nil {
		return nil, &domain.StorageError{Op: "latest timestamp", Err: err}
	}
	if ts == nil {
		return nil, nil
	}
	utc := ts.UTC()
	return &utc, nil
}

// RecordSuccess upserts the last-success timestamp for a task. Persisting
// it keeps the status surface truthful across restarts and worker processes.
func (p *Postgres) RecordSuccess(ctx context.Context, task string, at time.Time) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO ingest_task_run (task_name, last_success)
VALUES ($1, $2)
ON CONFLICT (task_name) DO UPDATE SET last_success = EXCLUDED.last_success`,
		task, at.UTC(),
	)
	if err != nil {
		return &domain.StorageError{Op: "record task success", Err: err}
	}
	return nil
}

// LastSuccess returns the recorded last-success time for every known task.
func (p *Postgres) LastSuccess(ctx context.Context) (map[string]time.Time, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT task_name, last_success FROM ingest_task_run`,
	)
	if err != nil {
		return nil, &domain.StorageError{Op: "list task runs", Err: err}
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var name string
		var ts time.Time
		if err := rows.Scan(&name, &ts); err != nil {
			return nil, &domain.StorageError{Op: "scan task run", Err: err}
		}
		out[name] = ts.UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list task runs", Err: err}
	}
	return out, nil
}
