package collector_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/kerntune/internal/collector"
	"codeberg.org/mutker/kerntune/internal/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fakeHost(t *testing.T) (proc, sys string) {
	t.Helper()
	proc = filepath.Join(t.TempDir(), "proc")
	sys = filepath.Join(t.TempDir(), "sys")
	require.NoError(t, os.MkdirAll(sys, 0o755))

	writeFile(t, proc, "stat", "cpu  300 0 100 500 100 0 0 0 0 0\ncpu0 300 0 100 500 100 0 0 0 0 0\n")
	writeFile(t, proc, "loadavg", "1.50 0.75 0.25 2/300 4242\n")
	writeFile(t, proc, "meminfo", `MemTotal:        1000 kB
MemFree:          200 kB
MemAvailable:     400 kB
Buffers:           10 kB
Cached:           100 kB
SwapTotal:        500 kB
SwapFree:         400 kB
`)
	writeFile(t, proc, "diskstats", `   8       0 sda 100 0 2000 0 50 0 4000 0 0 0 0
   7       0 loop0 5 0 80 0 0 0 0 0 0 0 0
`)
	writeFile(t, proc, "net/dev", `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo:    1000      10    0    0    0     0          0         0     1000      10    0    0    0     0       0          0
  eth0:    5000      50    0    0    0     0          0         0     3000      30    0    0    0     0       0          0
`)
	writeFile(t, proc, "sys/net/ipv4/tcp_congestion_control", "bbr\n")
	writeFile(t, proc, "sys/net/ipv4/tcp_rmem", "4096\t131072\t6291456\n")
	writeFile(t, proc, "sys/vm/swappiness", "60\n")

	return proc, sys
}

type staticGPU struct{}

func (staticGPU) Sample() (gpu.Stats, error) {
	return gpu.Stats{Utilization: 50, MemoryUsedMB: 1024, Temperature: 70, PowerWatts: 200}, nil
}

func (staticGPU) Shutdown() error { return nil }

func TestSnapshot(t *testing.T) {
	proc, sys := fakeHost(t)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	c, err := collector.New(collector.Config{
		ProcRoot:   proc,
		SysRoot:    sys,
		SysctlRoot: filepath.Join(proc, "sys"),
		GPU:        staticGPU{},
		Clock:      clocktesting.NewFakePassiveClock(ts),
	})
	require.NoError(t, err)

	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ts, snap.Timestamp)

	num := func(name string) float64 {
		v, ok := snap.Number(name)
		require.True(t, ok, name)
		return v
	}

	assert.InDelta(t, 40, num("cpu_percent"), 1e-9)
	assert.InDelta(t, 1.5, num("load_avg_1"), 1e-9)
	assert.InDelta(t, 0.25, num("load_avg_15"), 1e-9)
	assert.InDelta(t, 60, num("mem_percent"), 1e-9)
	assert.InDelta(t, 600*1024, num("mem_used"), 1e-9)
	assert.InDelta(t, 100*1024, num("swap_used"), 1e-9)
	assert.InDelta(t, 20, num("swap_percent"), 1e-9)
	assert.InDelta(t, 2000*512, num("read_bytes"), 1e-9)
	assert.InDelta(t, 4000*512, num("write_bytes"), 1e-9)
	assert.InDelta(t, 4000, num("bytes_sent"), 1e-9)
	assert.InDelta(t, 6000, num("bytes_recv"), 1e-9)
	assert.InDelta(t, 50, num("gpu_util"), 1e-9)
	assert.InDelta(t, 200, num("gpu_power"), 1e-9)
	assert.InDelta(t, 1, num("tcp_congestion_encoded"), 1e-9)
	assert.InDelta(t, 131072, num("tcp_rmem_default"), 1e-9)
	assert.InDelta(t, 60, num("vm_swappiness"), 1e-9)

	algo, _ := snap.Text("tcp_congestion_control")
	assert.Equal(t, "bbr", algo)

	// sources that are absent read as the missing sentinel
	assert.InDelta(t, collector.Missing, num("tcp_connections"), 0)
	assert.InDelta(t, collector.Missing, num("vm_dirty_ratio"), 0)
	assert.InDelta(t, collector.Missing, num("tcp_wmem_max"), 0)

	for _, f := range collector.Fields() {
		_, ok := snap.Get(f)
		assert.True(t, ok, f)
	}
}

func TestCPUPercentUsesDelta(t *testing.T) {
	proc, sys := fakeHost(t)
	c, err := collector.New(collector.Config{ProcRoot: proc, SysRoot: sys, SysctlRoot: filepath.Join(proc, "sys")})
	require.NoError(t, err)

	_, err = c.Snapshot(context.Background())
	require.NoError(t, err)

	// 100 more busy ticks and 100 more idle ticks
	writeFile(t, proc, "stat", "cpu  400 0 100 600 100 0 0 0 0 0\n")
	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	v, _ := snap.Number("cpu_percent")
	assert.InDelta(t, 50, v, 1e-9)
}

func TestMissingSourcesUseSentinel(t *testing.T) {
	proc := t.TempDir()
	c, err := collector.New(collector.Config{ProcRoot: proc, SysRoot: proc, SysctlRoot: filepath.Join(proc, "sys")})
	require.NoError(t, err)

	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)

	for _, f := range []string{"cpu_percent", "load_avg_1", "mem_percent", "read_bytes", "bytes_sent", "gpu_util", "tcp_congestion_encoded"} {
		v, ok := snap.Number(f)
		require.True(t, ok, f)
		assert.InDelta(t, collector.Missing, v, 0, f)
	}
}

func TestSnapshotCanceled(t *testing.T) {
	proc, sys := fakeHost(t)
	c, err := collector.New(collector.Config{ProcRoot: proc, SysRoot: sys})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeCongestion(t *testing.T) {
	assert.InDelta(t, 0, collector.EncodeCongestion("cubic"), 0)
	assert.InDelta(t, 1, collector.EncodeCongestion("bbr\n"), 0)
	assert.InDelta(t, 2, collector.EncodeCongestion("reno"), 0)
	assert.InDelta(t, -1, collector.EncodeCongestion("vegas"), 0)
}
