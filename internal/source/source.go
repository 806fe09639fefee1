// Package source contains one adapter per upstream platform. Every adapter
// converges on the same contract: fetch a raw payload over HTTP, normalize
// it, and emit canonical readings. Adapters classify failures using the
// domain error taxonomy but never retry; the scheduler owns that policy.
//
// A malformed field inside an otherwise valid payload is skipped and logged,
// never escalated. Zero readings with no error means the upstream genuinely
// had nothing new.
package source

import (
	"context"

	"github.com/oogsj/coastwatch/internal/domain"
)

// Source is a sensor-platform adapter.
type Source interface {
	// Name is the stable task name used for scheduling, metrics and logs.
	Name() string

	// Fetch pulls and normalizes the upstream payload. May perform
	// network I/O; returns NetworkError or FormatError on failure.
	Fetch(ctx context.Context) ([]domain.Reading, error)
}

// DocumentSource is a literature-metadata adapter; same contract as Source
// with a different entity graph.
type DocumentSource interface {
	Name() string
	FetchDocuments(ctx context.Context) ([]domain.Document, error)
}
