package ingest

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oogsj/coastwatch/internal/domain"
	"github.com/oogsj/coastwatch/internal/observability"
	"github.com/oogsj/coastwatch/internal/store"
)

type fakeStore struct {
	ids      map[domain.SensorIdentity]int64
	nextID   int64
	resolved []domain.SensorIdentity

	existing map[int64]time.Time // sensor id -> latest stored timestamp
	upserted [][]store.Measurement
	inserted int64 // value returned by the next UpsertReadings

	resolveErr error
	upsertErr  error

	docs    []domain.Document
	docsNew int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ids:      make(map[domain.SensorIdentity]int64),
		existing: make(map[int64]time.Time),
	}
}

func (s *fakeStore) ResolveSensor(_ context.Context, id domain.SensorIdentity) (int64, error) {
	if s.resolveErr != nil {
		return 0, s.resolveErr
	}
	s.resolved = append(s.resolved, id)
	sensorID, ok := s.ids[id]
	if !ok {
		s.nextID++
		sensorID = s.nextID
		s.ids[id] = sensorID
	}
	return sensorID, nil
}

func (s *fakeStore) UpsertReadings(_ context.Context, rows []store.Measurement) (int64, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.upserted = append(s.upserted, rows)
	if s.inserted >= 0 {
		return s.inserted, nil
	}
	return int64(len(rows)), nil
}

func (s *fakeStore) LatestTimestamp(_ context.Context, sensorID int64) (*time.Time, error) {
	ts, ok := s.existing[sensorID]
	if !ok {
		return nil, nil
	}
	return &ts, nil
}

func (s *fakeStore) UpsertDocuments(_ context.Context, docs []domain.Document) (int64, error) {
	s.docs = append(s.docs, docs...)
	return s.docsNew, nil
}

type fakeSource struct {
	name     string
	readings []domain.Reading
	err      error
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Fetch(context.Context) ([]domain.Reading, error) {
	return f.readings, f.err
}

type fakeDocSource struct {
	docs []domain.Document
	err  error
}

func (f *fakeDocSource) Name() string { return "documents" }
func (f *fakeDocSource) FetchDocuments(context.Context) ([]domain.Document, error) {
	return f.docs, f.err
}

type fakePublisher struct {
	events []Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func reading(sensor string, ts time.Time, value float64) domain.Reading {
	return domain.Reading{
		Identity: domain.SensorIdentity{
			Platform: "Boya EMAC EACC",
			Variable: "Altura de Olas",
			Unit:     domain.Unit{Name: "Metros", Symbol: "m"},
			Sensor:   sensor,
		},
		Timestamp:       ts,
		Value:           value,
		QualityFlag:     domain.QualityProbablyGood,
		ProcessingLevel: domain.ProcessingRaw,
		LocationID:      2,
	}
}

func newRunner(s *fakeStore, pub Publisher) *Runner {
	return New(s, s, s, pub,
		slog.New(slog.DiscardHandler),
		observability.NewMetricsForTesting())
}

func TestRunnerHappyPath(t *testing.T) {
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	s := newFakeStore()
	s.inserted = -1 // report everything as inserted
	src := &fakeSource{name: "buoy", readings: []domain.Reading{
		reading("altura_olas - EACC", base, 1.85),
		reading("altura_olas - EACC", base.Add(time.Hour), 1.92),
	}}

	report, err := newRunner(s, nil).Run(context.Background(), src, Options{})
	require.NoError(t, err)

	assert.Equal(t, Report{Fetched: 2, Inserted: 2, Skipped: 0}, report)
	require.Len(t, s.upserted, 1)
	require.Len(t, s.upserted[0], 2)
	assert.Equal(t, int64(1), s.upserted[0][0].SensorID, "both readings resolve to one sensor")
	assert.Equal(t, int64(1), s.upserted[0][1].SensorID)
}

func TestRunnerCountsDuplicates(t *testing.T) {
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	s := newFakeStore()
	s.inserted = 1 // one of three rows was new
	src := &fakeSource{name: "buoy", readings: []domain.Reading{
		reading("altura_olas - EACC", base, 1.85),
		reading("altura_olas - EACC", base.Add(time.Hour), 1.92),
		reading("altura_olas - EACC", base.Add(2*time.Hour), 2.01),
	}}

	report, err := newRunner(s, nil).Run(context.Background(), src, Options{})
	require.NoError(t, err)
	assert.Equal(t, Report{Fetched: 3, Inserted: 1, Skipped: 2}, report)
}

func TestRunnerClampsFutureTimestamps(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })

	s := newFakeStore()
	s.inserted = -1
	src := &fakeSource{name: "weather_puerto", readings: []domain.Reading{
		reading("temp_out - 191512", now.Add(30*time.Minute), 12.5),
	}}

	_, err := newRunner(s, nil).Run(context.Background(), src, Options{})
	require.NoError(t, err)
	require.Len(t, s.upserted, 1)
	assert.True(t, s.upserted[0][0].Timestamp.Equal(now))
}

func TestRunnerSkipsStale(t *testing.T) {
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	s := newFakeStore()
	s.inserted = -1

	// Seed the sensor id and its latest stored timestamp.
	id := reading("temp_out - 191512", base, 0).Identity
	s.ids[id] = 7
	s.nextID = 7
	s.existing[7] = base

	src := &fakeSource{name: "weather_puerto", readings: []domain.Reading{
		reading("temp_out - 191512", base, 12.5),                    // replay of the stored row
		reading("temp_out - 191512", base.Add(10*time.Minute), 12.9), // genuinely new
	}}

	report, err := newRunner(s, nil).Run(context.Background(), src, Options{SkipStale: true})
	require.NoError(t, err)

	assert.Equal(t, Report{Fetched: 2, Inserted: 1, Skipped: 1}, report)
	require.Len(t, s.upserted, 1)
	require.Len(t, s.upserted[0], 1)
	assert.True(t, s.upserted[0][0].Timestamp.Equal(base.Add(10*time.Minute)))
}

func TestRunnerFetchErrorPassesThrough(t *testing.T) {
	s := newFakeStore()
	wantErr := &domain.NetworkError{Source: "buoy", Err: errors.New("timeout")}
	src := &fakeSource{name: "buoy", err: wantErr}

	_, err := newRunner(s, nil).Run(context.Background(), src, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.Empty(t, s.upserted, "nothing reaches the store on fetch failure")
}

func TestRunnerResolveErrorAborts(t *testing.T) {
	s := newFakeStore()
	s.resolveErr = &domain.ConfigError{Err: errors.New("platform missing")}
	src := &fakeSource{name: "buoy", readings: []domain.Reading{
		reading("altura_olas - EACC", time.Now().UTC().Add(-time.Hour), 1.85),
	}}

	_, err := newRunner(s, nil).Run(context.Background(), src, Options{})
	require.Error(t, err)
	assert.False(t, domain.Retryable(err))
	assert.Empty(t, s.upserted)
}

func TestRunnerEmptyFetch(t *testing.T) {
	s := newFakeStore()
	src := &fakeSource{name: "mareograph"}

	report, err := newRunner(s, nil).Run(context.Background(), src, Options{})
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Empty(t, s.upserted)
}

func TestRunnerPublishesEvents(t *testing.T) {
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	s := newFakeStore()
	s.inserted = -1
	pub := &fakePublisher{}
	src := &fakeSource{name: "buoy", readings: []domain.Reading{
		reading("altura_olas - EACC", base, 1.85),
	}}

	_, err := newRunner(s, pub).Run(context.Background(), src, Options{})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "buoy", pub.events[0].Task)
	assert.Equal(t, int64(1), pub.events[0].Inserted)
}

func TestRunnerPublishFailureIsNotFatal(t *testing.T) {
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	s := newFakeStore()
	s.inserted = -1
	pub := &fakePublisher{err: errors.New("broker down")}
	src := &fakeSource{name: "buoy", readings: []domain.Reading{
		reading("altura_olas - EACC", base, 1.85),
	}}

	report, err := newRunner(s, pub).Run(context.Background(), src, Options{})
	require.NoError(t, err, "the feed is advisory")
	assert.Equal(t, int64(1), report.Inserted)
}

func TestRunnerNoEventWhenNothingInserted(t *testing.T) {
	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	s := newFakeStore()
	s.inserted = 0
	pub := &fakePublisher{}
	src := &fakeSource{name: "buoy", readings: []domain.Reading{
		reading("altura_olas - EACC", base, 1.85),
	}}

	_, err := newRunner(s, pub).Run(context.Background(), src, Options{})
	require.NoError(t, err)
	assert.Empty(t, pub.events)
}

func TestRunDocuments(t *testing.T) {
	s := newFakeStore()
	s.docsNew = 2
	src := &fakeDocSource{docs: []domain.Document{
		{DOI: "10.1000/a", Title: "A", Year: 2020},
		{Title: "B", Year: 2021, Authors: []string{"C. Author"}},
	}}

	upserted, err := newRunner(s, nil).RunDocuments(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(2), upserted)
	assert.Len(t, s.docs, 2)
}

func TestRunDocumentsFetchError(t *testing.T) {
	s := newFakeStore()
	wantErr := &domain.NetworkError{Source: "documents", Err: errors.New("429")}
	src := &fakeDocSource{err: wantErr}

	_, err := newRunner(s, nil).RunDocuments(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.Empty(t, s.docs)
}
