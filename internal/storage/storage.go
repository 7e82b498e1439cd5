package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/onee-only/capstat/internal/analysis/burst"
	"github.com/onee-only/capstat/internal/analysis/latency"
)

// Run is the outcome of one analysis as handed to an exporter.
type Run struct {
	ID        uuid.UUID
	Input     string
	StartedAt time.Time
	Packets   uint64

	// nil when the analysis was disabled
	Latency []latency.Summary
	Burst   []burst.Summary
}

// Exporter writes the raw rows behind a run's summaries.
type Exporter interface {
	Export(ctx context.Context, run *Run) error
	Close() error
}

// TableStorage owns the table of one analysis type in the export database.
type TableStorage interface {
	Init(db *sqlx.DB) error
	Store(ctx context.Context, tx *sqlx.Tx, run *Run) error
}
