package samplelog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores each sample as a row plus one row per field, so the layout
// never has to change when new fields appear.
type SQLite struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []*snapshot.Snapshot
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
	closed        bool
}

func OpenSQLite(cfg Config, log logger.Logger) (*SQLite, error) {
	errFactory := errors.New()

	if cfg.Path == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.Path,
			Error: err.Error(),
		})
	}

	dsn := cfg.Path + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	backupDir := cfg.BackupDir
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(cfg.Path), "backups")
	}

	if err := ValidateAndUpdateSchema(db, backupDir, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.Path).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("SQLite sample log opened")

	s := &SQLite{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]*snapshot.Snapshot, 0, max(cfg.BatchSize, 1)),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchSize > 0 && cfg.BatchTimeout > 0 {
		s.flushTicker = time.NewTicker(cfg.BatchTimeout)
		go s.flusher()
	} else {
		close(s.flushDoneChan)
	}

	return s, nil
}

func (s *SQLite) Append(_ context.Context, samples ...*snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New().New(ErrClosed)
	}

	s.buffer = append(s.buffer, samples...)
	if len(s.buffer) >= s.cfg.BatchSize {
		return s.flush()
	}

	return nil
}

func (s *SQLite) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flush()
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.flushTicker != nil {
		close(s.shutdownChan)
		s.flushTicker.Stop()
	}
	<-s.flushDoneChan

	s.mu.Lock()
	flushErr := s.flush()
	s.mu.Unlock()

	var checkpointErr error
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		checkpointErr = errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := s.db.Close(); err != nil {
		return errors.Join(checkpointErr, errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		}))
	}
	if checkpointErr != nil {
		return checkpointErr
	}

	s.logger.Info().Msg("SQLite sample log closed")

	return flushErr
}

func (s *SQLite) flusher() {
	defer close(s.flushDoneChan)

	for {
		select {
		case <-s.flushTicker.C:
			s.mu.Lock()
			if err := s.flush(); err != nil {
				s.logger.Warn().Err(err).Msg("Periodic sample flush failed")
			}
			s.mu.Unlock()
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *SQLite) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	rollback := func(err error) error {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	sampleStmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		return rollback(err)
	}
	defer sampleStmt.Close()

	fieldStmt, err := tx.Prepare(insertFieldSQL)
	if err != nil {
		return rollback(err)
	}
	defer fieldStmt.Close()

	for _, snap := range s.buffer {
		res, err := sampleStmt.Exec(snap.Timestamp.Format(snapshot.TimestampLayout))
		if err != nil {
			return rollback(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return rollback(err)
		}

		for _, f := range snap.Fields() {
			var num, text any
			if f.Value.Kind() == snapshot.KindNumber {
				num, _ = f.Value.Float()
			} else {
				text = f.Value.Text()
			}
			if _, err := fieldStmt.Exec(id, f.Name, num, text); err != nil {
				return rollback(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	s.logger.Debug().Int("records", len(s.buffer)).Msg("Flushed samples to database")
	s.buffer = s.buffer[:0]

	return nil
}
