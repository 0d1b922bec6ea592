// Package samplelog persists snapshots to an append-only sample log.
package samplelog

import (
	"context"
	"time"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/snapshot"
)

const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"

	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Writer appends snapshots in capture order. Appended samples may be
// buffered until Flush or until a batch fills; Close flushes.
type Writer interface {
	Append(ctx context.Context, samples ...*snapshot.Snapshot) error
	Flush() error
	Close() error
}

type Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	Format       string        `mapstructure:"format"`
	Path         string        `mapstructure:"path"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	BackupDir    string        `mapstructure:"backup_dir"`
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled {
		return nil
	}
	if c.Path == "" {
		return errFactory.New(ErrInvalidPath)
	}
	switch c.Format {
	case FormatCSV, FormatSQLite:
		return nil
	default:
		return errFactory.WithData(ErrUnknownFormat, struct {
			Format string
		}{c.Format})
	}
}

// Open returns the writer selected by cfg. columns fixes the CSV layout of
// a new file; the SQLite backend stores every field.
func Open(cfg Config, columns []string, log logger.Logger) (Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.New().Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Sample log disabled, using no-op writer")
		return Discard(), nil
	}

	if cfg.Format == FormatSQLite {
		return OpenSQLite(cfg, log)
	}

	return OpenCSV(cfg.Path, columns, cfg.BatchSize, log)
}

// Columns merges column groups into one header, timestamp first, keeping
// the first occurrence of each name.
func Columns(groups ...[]string) []string {
	seen := map[string]struct{}{snapshot.FieldTimestamp: {}}
	out := []string{snapshot.FieldTimestamp}
	for _, g := range groups {
		for _, c := range g {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}

	return out
}

type discard struct{}

// Discard returns a Writer that drops everything.
func Discard() Writer {
	return discard{}
}

func (discard) Append(context.Context, ...*snapshot.Snapshot) error { return nil }
func (discard) Flush() error                                         { return nil }
func (discard) Close() error                                         { return nil }
