// Package collector captures host metric snapshots from procfs, sysctl and
// the GPU.
package collector

import (
	"context"
	"math"
	"strings"
	"sync"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/gpu"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/sysctl"
	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/blockdevice"
	"k8s.io/utils/clock"
)

const (
	ErrInitCollector = errors.ErrorCode("collector_init_failed")

	// Missing marks a reading that could not be taken.
	Missing = -1.0

	sectorSize = 512
	kibibyte   = 1024

	congestionKey = "net.ipv4.tcp_congestion_control"
)

// hostFields is the fixed order of host readings in every snapshot.
var hostFields = []string{
	"cpu_percent",
	"load_avg_1",
	"load_avg_5",
	"load_avg_15",
	"gpu_util",
	"gpu_mem_used",
	"gpu_temp",
	"gpu_power",
	"mem_percent",
	"mem_used",
	"swap_used",
	"swap_percent",
	"read_bytes",
	"write_bytes",
	"bytes_sent",
	"bytes_recv",
	"tcp_connections",
	"tcp_congestion_control",
	"tcp_congestion_encoded",
}

var congestionCodes = map[string]float64{
	"cubic": 0,
	"bbr":   1,
	"reno":  2,
}

// Fields returns every field a collector snapshot carries, in order.
func Fields() []string {
	out := append([]string(nil), hostFields...)
	return append(out, params.Columns()...)
}

// EncodeCongestion maps a congestion control algorithm to its feature code.
func EncodeCongestion(algo string) float64 {
	if v, ok := congestionCodes[strings.TrimSpace(algo)]; ok {
		return v
	}

	return Missing
}

// Config locates the pseudo filesystems. Empty paths use the defaults.
type Config struct {
	ProcRoot   string
	SysRoot    string
	SysctlRoot string
	GPU        gpu.Reader
	Clock      clock.PassiveClock
}

// Collector is safe for concurrent use. CPU utilisation is measured
// between consecutive snapshots; the first snapshot measures since boot.
type Collector struct {
	proc       procfs.FS
	block      *blockdevice.FS
	sysctlRoot string
	gpu        gpu.Reader
	clock      clock.PassiveClock

	mu      sync.Mutex
	prevCPU *procfs.CPUStat
}

func New(cfg Config) (*Collector, error) {
	procRoot := cfg.ProcRoot
	if procRoot == "" {
		procRoot = procfs.DefaultMountPoint
	}
	sysRoot := cfg.SysRoot
	if sysRoot == "" {
		sysRoot = "/sys"
	}
	sysctlRoot := cfg.SysctlRoot
	if sysctlRoot == "" {
		sysctlRoot = sysctl.DefaultRoot
	}

	proc, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, errors.New().WrapWithData(ErrInitCollector, err, struct {
			ProcRoot string
		}{procRoot})
	}

	c := &Collector{
		proc:       proc,
		sysctlRoot: sysctlRoot,
		gpu:        cfg.GPU,
		clock:      cfg.Clock,
	}
	if c.clock == nil {
		c.clock = clock.RealClock{}
	}

	if block, err := blockdevice.NewFS(procRoot, sysRoot); err == nil {
		c.block = &block
	} else {
		logger.Debug().Err(err).Msg("Block device stats unavailable")
	}

	return c, nil
}

// Snapshot captures one reading of every field. Individual sources that
// fail are recorded as Missing; Snapshot itself only fails on a done
// context.
func (c *Collector) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := snapshot.New(c.clock.Now())

	c.collectCPU(snap)
	c.collectLoad(snap)
	c.collectGPU(snap)
	c.collectMemory(snap)
	c.collectDisk(snap)
	c.collectNetwork(snap)
	c.collectTCP(snap)
	c.collectTunables(snap)

	return snap, nil
}

func (c *Collector) collectCPU(snap *snapshot.Snapshot) {
	stat, err := c.proc.Stat()
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to read CPU stats")
		snap.SetNumber("cpu_percent", Missing)
		return
	}

	cur := stat.CPUTotal

	c.mu.Lock()
	prev := c.prevCPU
	c.prevCPU = &cur
	c.mu.Unlock()

	var base procfs.CPUStat
	if prev != nil {
		base = *prev
	}

	busy := cpuBusy(cur) - cpuBusy(base)
	total := cpuTotal(cur) - cpuTotal(base)
	if total <= 0 {
		snap.SetNumber("cpu_percent", 0)
		return
	}

	snap.SetNumber("cpu_percent", round2(busy/total*100))
}

func cpuTotal(s procfs.CPUStat) float64 {
	return s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal
}

func cpuBusy(s procfs.CPUStat) float64 {
	return cpuTotal(s) - s.Idle - s.Iowait
}

func (c *Collector) collectLoad(snap *snapshot.Snapshot) {
	load, err := c.proc.LoadAvg()
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to read load average")
		snap.SetNumber("load_avg_1", Missing)
		snap.SetNumber("load_avg_5", Missing)
		snap.SetNumber("load_avg_15", Missing)
		return
	}

	snap.SetNumber("load_avg_1", load.Load1)
	snap.SetNumber("load_avg_5", load.Load5)
	snap.SetNumber("load_avg_15", load.Load15)
}

func (c *Collector) collectGPU(snap *snapshot.Snapshot) {
	stats := gpu.Unavailable()
	if c.gpu != nil {
		var err error
		if stats, err = c.gpu.Sample(); err != nil {
			logger.Debug().Err(err).Msg("Incomplete GPU reading")
		}
	}

	snap.SetNumber("gpu_util", stats.Utilization)
	snap.SetNumber("gpu_mem_used", stats.MemoryUsedMB)
	snap.SetNumber("gpu_temp", stats.Temperature)
	snap.SetNumber("gpu_power", stats.PowerWatts)
}

func (c *Collector) collectMemory(snap *snapshot.Snapshot) {
	mem, err := c.proc.Meminfo()
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to read meminfo")
		for _, f := range []string{"mem_percent", "mem_used", "swap_used", "swap_percent"} {
			snap.SetNumber(f, Missing)
		}
		return
	}

	total := kb(mem.MemTotal)
	available := kb(mem.MemAvailable)
	if mem.MemAvailable == nil {
		available = kb(mem.MemFree) + kb(mem.Buffers) + kb(mem.Cached)
	}
	used := total - available

	snap.SetNumber("mem_percent", percent(used, total))
	snap.SetNumber("mem_used", used)

	swapTotal := kb(mem.SwapTotal)
	swapUsed := swapTotal - kb(mem.SwapFree)
	snap.SetNumber("swap_used", swapUsed)
	snap.SetNumber("swap_percent", percent(swapUsed, swapTotal))
}

func kb(v *uint64) float64 {
	if v == nil {
		return 0
	}

	return float64(*v) * kibibyte
}

func percent(part, total float64) float64 {
	if total <= 0 {
		return 0
	}

	return round2(part / total * 100)
}

func (c *Collector) collectDisk(snap *snapshot.Snapshot) {
	if c.block == nil {
		snap.SetNumber("read_bytes", Missing)
		snap.SetNumber("write_bytes", Missing)
		return
	}

	stats, err := c.block.ProcDiskstats()
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to read diskstats")
		snap.SetNumber("read_bytes", Missing)
		snap.SetNumber("write_bytes", Missing)
		return
	}

	var read, written float64
	for _, d := range stats {
		if virtualDisk(d.DeviceName) {
			continue
		}
		read += float64(d.ReadSectors) * sectorSize
		written += float64(d.WriteSectors) * sectorSize
	}

	snap.SetNumber("read_bytes", read)
	snap.SetNumber("write_bytes", written)
}

func virtualDisk(name string) bool {
	return strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram")
}

func (c *Collector) collectNetwork(snap *snapshot.Snapshot) {
	dev, err := c.proc.NetDev()
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to read net/dev")
		snap.SetNumber("bytes_sent", Missing)
		snap.SetNumber("bytes_recv", Missing)
		return
	}

	total := dev.Total()
	snap.SetNumber("bytes_sent", float64(total.TxBytes))
	snap.SetNumber("bytes_recv", float64(total.RxBytes))
}

func (c *Collector) collectTCP(snap *snapshot.Snapshot) {
	count := Missing
	if tcp, err := c.proc.NetTCP(); err == nil {
		count = float64(len(tcp))
		if tcp6, err := c.proc.NetTCP6(); err == nil {
			count += float64(len(tcp6))
		}
	} else {
		logger.Debug().Err(err).Msg("Failed to read net/tcp")
	}
	snap.SetNumber("tcp_connections", count)

	algo, err := sysctl.Read(c.sysctlRoot, congestionKey)
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to read congestion control")
		snap.SetString("tcp_congestion_control", "unknown")
		snap.SetNumber("tcp_congestion_encoded", Missing)
		return
	}
	snap.SetString("tcp_congestion_control", algo)
	snap.SetNumber("tcp_congestion_encoded", EncodeCongestion(algo))
}

// collectTunables records the current value of every tunable, flattened
// the same way recommendations are.
func (c *Collector) collectTunables(snap *snapshot.Snapshot) {
	for _, name := range params.Names() {
		cols := name.Columns()

		text, err := sysctl.Read(c.sysctlRoot, string(name))
		if err != nil {
			setMissing(snap, cols)
			continue
		}
		v, err := params.Parse(name, text)
		if err != nil {
			logger.Debug().Err(err).Str("key", string(name)).Msg("Unparseable tunable value")
			setMissing(snap, cols)
			continue
		}
		for i, f := range v.Flatten() {
			snap.SetNumber(cols[i], f)
		}
	}
}

func setMissing(snap *snapshot.Snapshot, cols []string) {
	for _, col := range cols {
		snap.SetNumber(col, Missing)
	}
}

// Close releases the GPU reader.
func (c *Collector) Close() error {
	if c.gpu == nil {
		return nil
	}

	return c.gpu.Shutdown()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
