package workload_test

import (
	"context"
	stderrors "errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	l, err := workload.Parse(" IO_Bound ")
	require.NoError(t, err)
	assert.Equal(t, workload.IOBound, l)

	_, err = workload.Parse("unknown")
	assert.True(t, errors.HasCode(err, workload.ErrInvalidLabel))

	_, err = workload.Parse("gpu_bound")
	assert.Error(t, err)
}

func TestLabelIndex(t *testing.T) {
	for i, l := range workload.Labels() {
		assert.Equal(t, i, l.Index())
		assert.Equal(t, l, workload.FromIndex(i))
	}
	assert.Equal(t, -1, workload.Unknown.Index())
	assert.Equal(t, workload.Unknown, workload.FromIndex(7))
	assert.Equal(t, workload.Unknown, workload.FromIndex(-1))
}

func TestForRejectsUnknown(t *testing.T) {
	_, err := workload.For(workload.Unknown, workload.Options{})
	assert.Error(t, err)

	d, err := workload.For(workload.Mixed, workload.Options{})
	require.NoError(t, err)
	assert.IsType(t, &workload.Composite{}, d)
}

func TestCPURespectsDuration(t *testing.T) {
	start := time.Now()
	err := (&workload.CPU{Workers: 2}).Run(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMemoryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&workload.Memory{MB: 1}).Run(ctx, time.Minute)
	assert.NoError(t, err)
}

func TestIORemovesScratchFile(t *testing.T) {
	dir := t.TempDir()
	drv := &workload.IO{Dir: dir, BlockSize: 4096, FileSize: 16384}

	require.NoError(t, drv.Run(context.Background(), 30*time.Millisecond))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompositeJoinsAll(t *testing.T) {
	var finished atomic.Int32
	ok := workload.DriverFunc(func(ctx context.Context, d time.Duration) error {
		time.Sleep(10 * time.Millisecond)
		finished.Add(1)
		return nil
	})
	failing := workload.DriverFunc(func(context.Context, time.Duration) error {
		return stderrors.New("boom")
	})

	err := (&workload.Composite{Drivers: []workload.Driver{ok, failing, ok}}).Run(context.Background(), time.Second)
	require.Error(t, err)
	assert.Equal(t, int32(2), finished.Load())
}

func TestCompositeReportsEveryFailure(t *testing.T) {
	first := stderrors.New("cpu worker crashed")
	second := stderrors.New("scratch dir missing")
	fail := func(err error) workload.Driver {
		return workload.DriverFunc(func(context.Context, time.Duration) error { return err })
	}

	err := (&workload.Composite{Drivers: []workload.Driver{fail(first), fail(second)}}).Run(context.Background(), time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}
