// Package store persists canonical readings and literature records in
// PostgreSQL. Write ownership is split: the catalog resolver owns
// variable/unit/sensor rows, the measurement store owns measurement rows,
// and platform rows are seeded by migration and never written at runtime.
package store

import (
	"context"
	"time"

	"github.com/oogsj/coastwatch/internal/domain"
)

// Measurement is a canonical reading with its sensor identity already
// resolved to a catalog id, ready for insertion.
type Measurement struct {
	SensorID          int64
	Timestamp         time.Time
	Value             float64
	QualityFlag       int
	ProcessingLevelID int
	LocationID        int
}

// Catalog resolves semantic sensor identities to sensor rows, lazily
// creating variable/unit/sensor entries. Platforms are never created: a
// missing platform means a misconfigured adapter.
type Catalog interface {
	ResolveSensor(ctx context.Context, id domain.SensorIdentity) (int64, error)
}

// Measurements is the idempotent bulk sink for resolved readings.
type Measurements interface {
	// UpsertReadings inserts all rows in one round trip. Rows conflicting
	// on (sensor_id, timestamp) are silently skipped. Returns the number
	// actually inserted.
	UpsertReadings(ctx context.Context, rows []Measurement) (int64, error)

	// LatestTimestamp returns the newest stored timestamp for a sensor,
	// or nil when the sensor has no measurements yet.
	LatestTimestamp(ctx context.Context, sensorID int64) (*time.Time, error)
}

// TaskRuns is the persisted per-task bookkeeping read by the status surface.
type TaskRuns interface {
	RecordSuccess(ctx context.Context, task string, at time.Time) error
	LastSuccess(ctx context.Context) (map[string]time.Time, error)
}

// Documents is the idempotent sink for literature metadata.
type Documents interface {
	// UpsertDocuments commits the document/author graph for each record,
	// keyed on DOI when present, otherwise on (normalized title, year,
	// first author). Returns the number of new documents.
	UpsertDocuments(ctx context.Context, docs []domain.Document) (int64, error)
}
