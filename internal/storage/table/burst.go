package table

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/onee-only/capstat/internal/analysis/burst"
	"github.com/onee-only/capstat/internal/storage"
	"github.com/onee-only/capstat/pkg/util"
)

const burstTable = `
CREATE TABLE IF NOT EXISTS burst_row(
	run_id BLOB NOT NULL,
	host_id INT NOT NULL,
	reliable INT2 NOT NULL, outgoing INT2 NOT NULL,
	message_id INT NOT NULL,

	packet_number INT NOT NULL,
	sequence_number INT NOT NULL,
	timestamp REAL NOT NULL,
	delta_ms REAL
)`

type BurstStorage struct{}

var _ storage.TableStorage = (*BurstStorage)(nil)

func (s *BurstStorage) Init(db *sqlx.DB) error {
	_, err := db.Exec(burstTable)
	if err != nil {
		return errors.Wrap(err, "burst storage: creating burst_row table")
	}
	return nil
}

func (s *BurstStorage) Store(ctx context.Context, tx *sqlx.Tx, run *storage.Run) error {
	for _, summary := range run.Burst {
		for _, row := range summary.Rows {
			_, err := tx.NamedExecContext(ctx,
				`INSERT INTO burst_row VALUES(
					:run_id, :host_id, :reliable, :outgoing, :message_id,
					:packet_number, :sequence_number, :timestamp, :delta_ms
				)`, burst2schema(run.ID, summary.Key, row))
			if err != nil {
				return errors.Wrap(err, "burst storage: inserting row")
			}
		}
	}

	return nil
}

type BurstSchema struct {
	RunID     []byte `db:"run_id"`
	HostID    uint8  `db:"host_id"`
	Reliable  uint8  `db:"reliable"`
	Outgoing  uint8  `db:"outgoing"`
	MessageID int64  `db:"message_id"`

	PacketNumber   int64           `db:"packet_number"`
	SequenceNumber int64           `db:"sequence_number"`
	Timestamp      float64         `db:"timestamp"`
	DeltaMs        sql.NullFloat64 `db:"delta_ms"`
}

func burst2schema(runID uuid.UUID, key burst.Key, row burst.Row) *BurstSchema {
	return &BurstSchema{
		RunID:          runID[:],
		HostID:         key.HostID,
		Reliable:       util.BoolToUint8(key.Reliable),
		Outgoing:       util.BoolToUint8(key.Outgoing),
		MessageID:      int64(key.MessageID),
		PacketNumber:   int64(row.PacketNumber),
		SequenceNumber: int64(row.SequenceNumber),
		Timestamp:      row.Timestamp,
		DeltaMs:        sql.NullFloat64{Float64: row.DeltaMs, Valid: row.HasDelta},
	}
}
