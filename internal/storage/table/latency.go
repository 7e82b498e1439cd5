package table

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/onee-only/capstat/internal/analysis/latency"
	"github.com/onee-only/capstat/internal/storage"
)

const latencyTable = `
CREATE TABLE IF NOT EXISTS latency_pair(
	run_id BLOB NOT NULL,
	transport TEXT NOT NULL,
	message_id INT NOT NULL,
	host_id INT NOT NULL,
	sequence_number INT NOT NULL,

	first_packet INT NOT NULL, second_packet INT NOT NULL,
	first_timestamp REAL NOT NULL, second_timestamp REAL NOT NULL,
	latency_ms REAL NOT NULL,

	PRIMARY KEY(run_id, transport, host_id, sequence_number)
)`

type LatencyStorage struct{}

var _ storage.TableStorage = (*LatencyStorage)(nil)

func (s *LatencyStorage) Init(db *sqlx.DB) error {
	_, err := db.Exec(latencyTable)
	if err != nil {
		return errors.Wrap(err, "latency storage: creating latency_pair table")
	}
	return nil
}

func (s *LatencyStorage) Store(ctx context.Context, tx *sqlx.Tx, run *storage.Run) error {
	for _, summary := range run.Latency {
		for _, pair := range summary.Pairs {
			_, err := tx.NamedExecContext(ctx,
				`INSERT INTO latency_pair VALUES(
					:run_id, :transport, :message_id, :host_id, :sequence_number,
					:first_packet, :second_packet, :first_timestamp, :second_timestamp,
					:latency_ms
				)`, latency2schema(run.ID, pair))
			if err != nil {
				return errors.Wrap(err, "latency storage: inserting pair")
			}
		}
	}

	return nil
}

// Unsigned columns are stored as their int64 bit pattern.
type LatencySchema struct {
	RunID          []byte `db:"run_id"`
	Transport      string `db:"transport"`
	MessageID      int64  `db:"message_id"`
	HostID         uint8  `db:"host_id"`
	SequenceNumber int64  `db:"sequence_number"`

	FirstPacket     int64   `db:"first_packet"`
	SecondPacket    int64   `db:"second_packet"`
	FirstTimestamp  float64 `db:"first_timestamp"`
	SecondTimestamp float64 `db:"second_timestamp"`
	LatencyMs       float64 `db:"latency_ms"`
}

func latency2schema(runID uuid.UUID, pair latency.Pair) *LatencySchema {
	return &LatencySchema{
		RunID:           runID[:],
		Transport:       pair.Transport.String(),
		MessageID:       int64(pair.MessageID),
		HostID:          pair.HostID,
		SequenceNumber:  int64(pair.SequenceNumber),
		FirstPacket:     int64(pair.First.PacketNumber),
		SecondPacket:    int64(pair.Second.PacketNumber),
		FirstTimestamp:  pair.First.Timestamp,
		SecondTimestamp: pair.Second.Timestamp,
		LatencyMs:       pair.LatencyMs,
	}
}
