package domain

import (
	"fmt"
	"time"
)

// Quality flags as stored in measurement.quality_flag.
const (
	QualityNone         = 0
	QualityGood         = 1
	QualityProbablyGood = 2
	QualityBad          = 4
	QualityEstimated    = 7
)

// Processing levels as stored in measurement.processing_level_id.
const (
	ProcessingRaw         = 1
	ProcessingModelOutput = 5
	ProcessingDerived     = 6
)

// Unit is a unit of measure as it appears in the catalog.
type Unit struct {
	Name   string // e.g. "Metros por segundo"
	Symbol string // e.g. "m/s" — unique in the catalog
}

// SensorIdentity is the semantic triple (plus display name) that the catalog
// resolver maps to a sensor row. It is never persisted itself.
type SensorIdentity struct {
	Platform string // must already exist in the catalog
	Variable string // lazily created
	Unit     Unit   // lazily created, keyed by symbol
	Sensor   string // display name, unique in the catalog, lazily created
}

func (id SensorIdentity) String() string {
	return fmt.Sprintf("%s/%s [%s]", id.Platform, id.Sensor, id.Unit.Symbol)
}

// Reading is one normalized observation produced by a source adapter.
// Value is already in SI units and never a sentinel; Timestamp is UTC.
type Reading struct {
	Identity        SensorIdentity
	Timestamp       time.Time
	Value           float64
	QualityFlag     int
	ProcessingLevel int
	LocationID      int
}

// ClampFuture caps the reading's timestamp at the current wall-clock time.
// Station consoles with drifting clocks occasionally report observations
// from the future; those are stored as "now" rather than rejected.
// Returns true if the timestamp was adjusted.
func (r *Reading) ClampFuture() bool {
	now := clock.Now().UTC()
	if r.Timestamp.After(now) {
		r.Timestamp = now
		return true
	}
	return false
}
