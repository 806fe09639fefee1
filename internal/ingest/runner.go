// Package ingest runs the fetch-resolve-upsert cycle for a single source.
// The runner owns normalization policy that is uniform across sources
// (future-timestamp clamping, staleness guard, idempotent insertion); the
// adapters own everything source-specific.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/oogsj/coastwatch/internal/domain"
	"github.com/oogsj/coastwatch/internal/observability"
	"github.com/oogsj/coastwatch/internal/source"
	"github.com/oogsj/coastwatch/internal/store"
)

// Event describes one completed batch insertion, published to the optional
// downstream feed.
type Event struct {
	Task       string    `json:"task"`
	Inserted   int64     `json:"inserted"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits batch-insertion events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Options tunes per-task runner behavior.
type Options struct {
	// SkipStale drops readings not newer than the sensor's latest stored
	// timestamp before upserting. Used for stations whose API replays the
	// same current-conditions record between console updates.
	SkipStale bool
}

// Report summarizes one run.
type Report struct {
	Fetched  int
	Inserted int64
	Skipped  int64
}

// Runner executes ingest cycles against the store.
type Runner struct {
	catalog      store.Catalog
	measurements store.Measurements
	documents    store.Documents
	publisher    Publisher // nil when the event feed is disabled
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// New creates a Runner. publisher may be nil.
func New(
	catalog store.Catalog,
	measurements store.Measurements,
	documents store.Documents,
	publisher Publisher,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Runner {
	return &Runner{
		catalog:      catalog,
		measurements: measurements,
		documents:    documents,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
	}
}

// Run executes one full cycle for the source: fetch, clamp, resolve,
// optionally drop stale rows, then upsert. Duplicate rows are counted as
// skipped, never as failures.
func (r *Runner) Run(ctx context.Context, src source.Source, opts Options) (Report, error) {
	task := src.Name()
	start := time.Now()

	fetchStart := time.Now()
	readings, err := src.Fetch(ctx)
	r.metrics.FetchDuration.WithLabelValues(task).Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		return Report{}, err
	}

	report := Report{Fetched: len(readings)}
	r.metrics.ReadingsFetched.WithLabelValues(task).Add(float64(len(readings)))

	if len(readings) == 0 {
		r.logger.Info("nothing to ingest", "task", task)
		return report, nil
	}

	rows, err := r.resolve(ctx, task, readings)
	if err != nil {
		return report, err
	}

	if opts.SkipStale {
		rows, err = r.dropStale(ctx, task, rows, &report)
		if err != nil {
			return report, err
		}
	}

	if len(rows) > 0 {
		inserted, err := r.measurements.UpsertReadings(ctx, rows)
		if err != nil {
			return report, err
		}
		report.Inserted = inserted

		duplicates := int64(len(rows)) - inserted
		report.Skipped += duplicates
		r.metrics.ReadingsInserted.WithLabelValues(task).Add(float64(inserted))
		r.metrics.ReadingsSkipped.WithLabelValues(task, "duplicate").Add(float64(duplicates))
	}

	r.metrics.RunDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
	r.logger.Info("ingest run complete",
		"task", task,
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
	)

	r.publishInserted(ctx, task, report.Inserted)
	return report, nil
}

// resolve maps each reading's identity to a sensor id, clamping future
// timestamps on the way through.
func (r *Runner) resolve(ctx context.Context, task string, readings []domain.Reading) ([]store.Measurement, error) {
	rows := make([]store.Measurement, 0, len(readings))
	for i := range readings {
		reading := &readings[i]
		if reading.ClampFuture() {
			r.logger.Warn("clamped future timestamp",
				"task", task, "sensor", reading.Identity.Sensor)
		}

		sensorID, err := r.catalog.ResolveSensor(ctx, reading.Identity)
		if err != nil {
			return nil, err
		}
		rows = append(rows, store.Measurement{
			SensorID:          sensorID,
			Timestamp:         reading.Timestamp,
			Value:             reading.Value,
			QualityFlag:       reading.QualityFlag,
			ProcessingLevelID: reading.ProcessingLevel,
			LocationID:        reading.LocationID,
		})
	}
	return rows, nil
}

// dropStale removes rows not newer than their sensor's latest stored
// timestamp.
func (r *Runner) dropStale(ctx context.Context, task string, rows []store.Measurement, report *Report) ([]store.Measurement, error) {
	latest := make(map[int64]*time.Time)
	kept := rows[:0]
	for _, row := range rows {
		ts, ok := latest[row.SensorID]
		if !ok {
			var err error
			ts, err = r.measurements.LatestTimestamp(ctx, row.SensorID)
			if err != nil {
				return nil, err
			}
			latest[row.SensorID] = ts
		}
		if ts != nil && !row.Timestamp.After(*ts) {
			report.Skipped++
			r.metrics.ReadingsSkipped.WithLabelValues(task, "stale").Inc()
			continue
		}
		kept = append(kept, row)
	}
	return kept, nil
}

// RunDocuments executes one literature ingest cycle.
func (r *Runner) RunDocuments(ctx context.Context, src source.DocumentSource) (int64, error) {
	start := time.Now()

	docs, err := src.FetchDocuments(ctx)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		r.logger.Info("no documents fetched", "task", src.Name())
		return 0, nil
	}

	upserted, err := r.documents.UpsertDocuments(ctx, docs)
	if err != nil {
		return 0, err
	}

	r.metrics.DocumentsUpserted.Add(float64(upserted))
	r.metrics.RunDuration.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())
	r.logger.Info("document ingest complete",
		"task", src.Name(), "fetched", len(docs), "upserted", upserted)
	return upserted, nil
}

// publishInserted emits the batch event when a publisher is configured.
// Publish failures are logged and dropped; the feed is advisory and must not
// fail an otherwise successful run.
func (r *Runner) publishInserted(ctx context.Context, task string, inserted int64) {
	if r.publisher == nil || inserted == 0 {
		return
	}
	ev := Event{Task: task, Inserted: inserted, OccurredAt: time.Now().UTC()}
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.logger.Warn("event publish failed", "task", task, "error", err)
		return
	}
	r.metrics.EventsPublished.Inc()
}
