package workload

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMemoryMB    = 512
	defaultIOBlockSize = 1 << 20
	defaultIOFileSize  = 256 << 20
	pageSize           = 4096
	memoryTouchPeriod  = 100 * time.Millisecond
	cpuCheckEvery      = 1 << 12
)

// Driver generates synthetic load for a bounded duration.
type Driver interface {
	Run(ctx context.Context, d time.Duration) error
}

// DriverFunc adapts a function to Driver.
type DriverFunc func(ctx context.Context, d time.Duration) error

func (f DriverFunc) Run(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// Options tunes the built-in drivers.
type Options struct {
	CPUWorkers int
	MemoryMB   int
	IODir      string
}

// For returns the built-in driver for label.
func For(label Label, opts Options) (Driver, error) {
	switch label {
	case CPUBound:
		return &CPU{Workers: opts.CPUWorkers}, nil
	case IOBound:
		return &IO{Dir: opts.IODir}, nil
	case MemoryBound:
		return &Memory{MB: opts.MemoryMB}, nil
	case Mixed:
		return &Composite{Drivers: []Driver{
			&CPU{Workers: opts.CPUWorkers},
			&IO{Dir: opts.IODir},
			&Memory{MB: opts.MemoryMB},
		}}, nil
	default:
		return nil, errors.New().WithData(ErrInvalidLabel, struct {
			Label string
		}{string(label)})
	}
}

// CPU keeps Workers goroutines busy with integer arithmetic.
type CPU struct {
	Workers int
}

func (c *CPU) Run(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger.Debug().Int("workers", workers).Dur("duration", d).Msg("Starting CPU workload")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			n := 2
			for iter := 0; ; iter++ {
				if iter%cpuCheckEvery == 0 && ctx.Err() != nil {
					return nil
				}
				_ = isPrime(n)
				n++
			}
		})
	}

	return g.Wait()
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}

	return true
}

// Memory allocates MB megabytes and keeps touching every page.
type Memory struct {
	MB int
}

func (m *Memory) Run(ctx context.Context, d time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	mb := m.MB
	if mb <= 0 {
		mb = defaultMemoryMB
	}

	logger.Debug().Int("mb", mb).Dur("duration", d).Msg("Starting memory workload")

	buf := make([]byte, mb<<20)
	ticker := time.NewTicker(memoryTouchPeriod)
	defer ticker.Stop()

	var round byte
	for {
		for i := 0; i < len(buf); i += pageSize {
			buf[i] = round
		}
		round++

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// IO writes and syncs blocks to a scratch file in Dir, rewinding once the
// file reaches its size cap. The file is removed afterwards.
type IO struct {
	Dir       string
	BlockSize int
	FileSize  int64
}

func (w *IO) Run(ctx context.Context, d time.Duration) error {
	errFactory := errors.New()

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	dir := w.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	blockSize := w.BlockSize
	if blockSize <= 0 {
		blockSize = defaultIOBlockSize
	}
	fileSize := w.FileSize
	if fileSize <= 0 {
		fileSize = defaultIOFileSize
	}

	f, err := os.CreateTemp(dir, "kerntune-io-*.dat")
	if err != nil {
		return errFactory.Wrap(ErrIOSetupFailed, err)
	}
	path := f.Name()
	defer func() {
		f.Close()
		if err := os.Remove(path); err != nil {
			logger.Debug().Err(err).Str("path", filepath.Clean(path)).Msg("Failed to remove scratch file")
		}
	}()

	logger.Debug().Str("path", path).Dur("duration", d).Msg("Starting I/O workload")

	block := make([]byte, blockSize)
	for i := range block {
		block[i] = byte(i)
	}

	var written int64
	for ctx.Err() == nil {
		if written+int64(blockSize) > fileSize {
			if _, err := f.Seek(0, 0); err != nil {
				return errFactory.Wrap(ErrDriverFailed, err)
			}
			written = 0
		}
		n, err := f.Write(block)
		if err != nil {
			return errFactory.Wrap(ErrDriverFailed, err)
		}
		written += int64(n)
		if err := f.Sync(); err != nil {
			return errFactory.Wrap(ErrDriverFailed, err)
		}
	}

	return nil
}

// Composite runs its drivers concurrently and waits for all of them. A
// failing driver does not stop its siblings, and every failure is
// returned joined.
type Composite struct {
	Drivers []Driver
}

func (c *Composite) Run(ctx context.Context, d time.Duration) error {
	errs := make([]error, len(c.Drivers))

	var g errgroup.Group
	for i, drv := range c.Drivers {
		g.Go(func() error {
			errs[i] = drv.Run(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
