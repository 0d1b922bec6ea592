package samplelog

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/snapshot"
)

// CSV writes samples as rows of a header-once CSV file. Reopening an
// existing file keeps its header; fields outside the header are dropped.
type CSV struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	w         *csv.Writer
	columns   []string
	known     map[string]struct{}
	dropped   map[string]struct{}
	buffer    []*snapshot.Snapshot
	batchSize int
	logger    logger.Logger
	closed    bool
}

func OpenCSV(path string, columns []string, batchSize int, log logger.Logger) (*CSV, error) {
	errFactory := errors.New()

	if path == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.WrapWithData(ErrOpenFailed, err, struct {
			Phase string
			Path  string
		}{"create_directory", path})
	}

	header, err := readHeader(path)
	if err != nil {
		return nil, errFactory.WrapWithData(ErrHeaderFailed, err, struct {
			Path string
		}{path})
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return nil, errFactory.WrapWithData(ErrOpenFailed, err, struct {
			Phase string
			Path  string
		}{"open_file", path})
	}

	c := &CSV{
		path:      path,
		file:      f,
		w:         csv.NewWriter(f),
		dropped:   make(map[string]struct{}),
		batchSize: batchSize,
		logger:    log,
	}

	if header == nil {
		c.columns = append([]string(nil), columns...)
		if err := c.w.Write(c.columns); err != nil {
			f.Close()
			return nil, errFactory.Wrap(ErrHeaderFailed, err)
		}
		c.w.Flush()
		if err := c.w.Error(); err != nil {
			f.Close()
			return nil, errFactory.Wrap(ErrHeaderFailed, err)
		}
	} else {
		c.columns = header
	}

	c.known = make(map[string]struct{}, len(c.columns))
	for _, col := range c.columns {
		c.known[col] = struct{}{}
	}

	log.Info().
		Str("path", path).
		Int("columns", len(c.columns)).
		Bool("existing", header != nil).
		Msg("CSV sample log opened")

	return c, nil
}

// readHeader returns the first record of an existing non-empty file, or
// nil if there is none.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err == io.EOF {
		return nil, nil
	}

	return header, err
}

// Columns returns the header in effect.
func (c *CSV) Columns() []string {
	return append([]string(nil), c.columns...)
}

func (c *CSV) Append(_ context.Context, samples ...*snapshot.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New().New(ErrClosed)
	}

	c.buffer = append(c.buffer, samples...)
	if len(c.buffer) >= c.batchSize {
		return c.flush()
	}

	return nil
}

func (c *CSV) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	return c.flush()
}

func (c *CSV) flush() error {
	if len(c.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	for _, s := range c.buffer {
		rec := s.Record()
		row := make([]string, len(c.columns))
		for i, col := range c.columns {
			row[i] = rec[col]
		}
		for name := range rec {
			if _, ok := c.known[name]; ok {
				continue
			}
			if _, seen := c.dropped[name]; !seen {
				c.dropped[name] = struct{}{}
				c.logger.Debug().Str("field", name).Str("path", c.path).Msg("Dropping field not in sample log header")
			}
		}
		if err := c.w.Write(row); err != nil {
			return errFactory.Wrap(ErrWriteFailed, err)
		}
	}

	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}
	if err := c.file.Sync(); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	c.logger.Debug().Int("records", len(c.buffer)).Msg("Flushed samples to CSV")
	c.buffer = c.buffer[:0]

	return nil
}

func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	flushErr := c.flush()
	c.closed = true

	if err := c.file.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, errors.Join(flushErr, err))
	}

	return flushErr
}
