package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore is a Store backed by database/sql. Sqlite uses a dedicated single
// connection writer and a read-only reader; MySQL shares one pool.
type SQLStore struct {
	driver   string
	writeDSN string
	readDSN  string
	schema   []string
	poolSize int

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a ledger in the sqlite database at dbPath. The file
// and schema are created on first write.
func NewSqliteStore(dbPath string) *SQLStore {
	return &SQLStore{
		driver:   "sqlite3",
		writeDSN: fmt.Sprintf("file:%s?%s", dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"),
		readDSN:  fmt.Sprintf("file:%s?%s", dbPath, "mode=ro&_busy_timeout=5000"),
		schema:   sqliteSchema,
		poolSize: 1,
	}
}

func (s *SQLStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open(s.driver, s.writeDSN)
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		if s.poolSize > 0 {
			db.SetMaxOpenConns(s.poolSize)
		}

		for _, stmt := range s.schema {
			if _, err = db.Exec(stmt); err != nil {
				_ = db.Close()
				s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
				return
			}
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SQLStore) getReadDB() (*sql.DB, error) {
	// the schema must exist before a read-only connection can query it
	writeDB, err := s.getWriteDB()
	if err != nil {
		return nil, err
	}
	if s.readDSN == "" {
		return writeDB, nil
	}

	s.readDBOnce.Do(func() {
		db, err := sql.Open(s.driver, s.readDSN)
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SQLStore) StartRun(ctx context.Context, tool, source, destination string) (run *Run, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return nil, fmt.Errorf("getting write connection: %w", err)
	}

	run = &Run{
		ID:          uuid.New(),
		Tool:        tool,
		StartTime:   time.Now().UTC(),
		Source:      source,
		Destination: destination,
	}

	stmt, err := db.PrepareContext(ctx, insertRunSQL)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, run.ID.String(), run.Tool, run.StartTime, run.Source, run.Destination); err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

func (s *SQLStore) RecordItem(ctx context.Context, item *Item) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}

	stmt, err := db.PrepareContext(ctx, insertItemSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	_, err = stmt.ExecContext(ctx,
		item.RunID.String(),
		item.Path,
		item.Status,
		item.ErrorKind,
		item.Message,
		item.Sweeps,
		item.Channels,
		joinOutputs(item.Outputs),
		item.Bytes,
		item.Duration.Milliseconds(),
		item.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

func (s *SQLStore) FinishRun(ctx context.Context, run *Run) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	end := time.Now().UTC()
	run.EndTime = &end

	stmt, err := db.PrepareContext(ctx, finishRunSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, end, run.Succeeded, run.Failed, run.ID.String()); err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	return nil
}

func (s *SQLStore) Runs(ctx context.Context) (runs []*Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			run     Run
			id      string
			endTime sql.NullTime
		)
		if err = rows.Scan(&id, &run.Tool, &run.StartTime, &endTime, &run.Source, &run.Destination, &run.Succeeded, &run.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing run id %q: %w", id, err)
		}
		if endTime.Valid {
			t := endTime.Time.UTC()
			run.EndTime = &t
		}
		run.StartTime = run.StartTime.UTC()
		runs = append(runs, &run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

func (s *SQLStore) Items(ctx context.Context, runID uuid.UUID) (items []*Item, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectItemsSQL, runID.String())
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			item       Item
			id         string
			outputs    string
			durationMS int64
		)
		err = rows.Scan(&id, &item.Path, &item.Status, &item.ErrorKind, &item.Message,
			&item.Sweeps, &item.Channels, &outputs, &item.Bytes, &durationMS, &item.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		if item.RunID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing run id %q: %w", id, err)
		}
		item.Outputs = splitOutputs(outputs)
		item.Duration = time.Duration(durationMS) * time.Millisecond
		item.Timestamp = item.Timestamp.UTC()
		items = append(items, &item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

func (s *SQLStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
