package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/onee-only/capstat/pkg/analyze"
	"github.com/onee-only/capstat/pkg/util"
)

const runTable = `
CREATE TABLE IF NOT EXISTS run(
	id BLOB NOT NULL PRIMARY KEY,
	input TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	packets INT NOT NULL,
	latency INT2 NOT NULL,
	burst INT2 NOT NULL
)`

type RunSchema struct {
	ID        []byte    `db:"id"`
	Input     string    `db:"input"`
	StartedAt time.Time `db:"started_at"`
	Packets   int64     `db:"packets"`
	Latency   uint8     `db:"latency"`
	Burst     uint8     `db:"burst"`
}

// SQLiteStorage exports runs into <dir>/<run id>/export.db.
type SQLiteStorage struct {
	tableStorages map[analyze.AnalyzeType]TableStorage

	path string
	db   *sqlx.DB
}

var _ Exporter = (*SQLiteStorage)(nil)

func NewSQLiteStorage(dir string, run *Run) (*SQLiteStorage, error) {
	path := filepath.Join(dir, run.ID.String())
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, errors.Wrap(err, "sqlite storage: creating run dir")
	}

	db, err := sqlx.Open("sqlite3", fmt.Sprintf("file:%s", filepath.Join(path, "export.db")))
	if err != nil {
		return nil, errors.Wrap(err, "sqlite storage: opening db")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite storage: ping db")
	}

	if _, err := db.Exec(runTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite storage: creating run table")
	}

	return &SQLiteStorage{
		tableStorages: make(map[analyze.AnalyzeType]TableStorage),
		path:          path,
		db:            db,
	}, nil
}

func (s *SQLiteStorage) Register(t analyze.AnalyzeType, storage TableStorage) error {
	if err := storage.Init(s.db); err != nil {
		return errors.Wrap(err, "sqlite storage: table storage init")
	}

	s.tableStorages[t] = storage

	return nil
}

// Path returns the directory holding the database.
func (s *SQLiteStorage) Path() string { return s.path }

// DB exposes the export database for reading back.
func (s *SQLiteStorage) DB() *sqlx.DB { return s.db }

// Export stores the run and the rows of every registered table in one
// transaction.
func (s *SQLiteStorage) Export(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite storage: beginning transaction")
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO run VALUES(:id, :input, :started_at, :packets, :latency, :burst)`,
		run2schema(run))
	if err != nil {
		return errors.Wrap(err, "sqlite storage: inserting run")
	}

	for _, ts := range s.tableStorages {
		if err := ts.Store(ctx, tx, run); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlite storage: committing")
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func run2schema(run *Run) *RunSchema {
	return &RunSchema{
		ID:        run.ID[:],
		Input:     run.Input,
		StartedAt: run.StartedAt.UTC(),
		Packets:   int64(run.Packets),
		Latency:   util.BoolToUint8(run.Latency != nil),
		Burst:     util.BoolToUint8(run.Burst != nil),
	}
}
