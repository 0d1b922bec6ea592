package params

import "strings"

// Name identifies a tunable kernel parameter by its sysctl key.
type Name string

const (
	SchedLatency         Name = "kernel.sched_latency_ns"
	SchedMigrationCost   Name = "kernel.sched_migration_cost_ns"
	Swappiness           Name = "vm.swappiness"
	DirtyRatio           Name = "vm.dirty_ratio"
	DirtyBackgroundRatio Name = "vm.dirty_background_ratio"
	DirtyExpire          Name = "vm.dirty_expire_centisecs"
	MinFreeKbytes        Name = "vm.min_free_kbytes"
	TCPRmem              Name = "net.ipv4.tcp_rmem"
	TCPWmem              Name = "net.ipv4.tcp_wmem"
)

// ValueKind is the shape a parameter's value takes.
type ValueKind uint8

const (
	KindScalar ValueKind = iota
	KindTriple
)

func (k ValueKind) String() string {
	if k == KindTriple {
		return "triple"
	}

	return "scalar"
}

type tunable struct {
	name    Name
	kind    ValueKind
	columns []string
}

// vocabulary is the closed set of tunables, in canonical order.
var vocabulary = []tunable{
	{SchedLatency, KindScalar, []string{"kernel_sched_latency_ns"}},
	{SchedMigrationCost, KindScalar, []string{"kernel_sched_migration_cost_ns"}},
	{Swappiness, KindScalar, []string{"vm_swappiness"}},
	{DirtyRatio, KindScalar, []string{"vm_dirty_ratio"}},
	{DirtyBackgroundRatio, KindScalar, []string{"vm_dirty_background_ratio"}},
	{DirtyExpire, KindScalar, []string{"vm_dirty_expire_centisecs"}},
	{MinFreeKbytes, KindScalar, []string{"vm_min_free_kbytes"}},
	{TCPRmem, KindTriple, []string{"tcp_rmem_min", "tcp_rmem_default", "tcp_rmem_max"}},
	{TCPWmem, KindTriple, []string{"tcp_wmem_min", "tcp_wmem_default", "tcp_wmem_max"}},
}

var byName = func() map[Name]int {
	m := make(map[Name]int, len(vocabulary))
	for i, s := range vocabulary {
		m[s.name] = i
	}
	return m
}()

// Names returns every known parameter in canonical order.
func Names() []Name {
	out := make([]Name, len(vocabulary))
	for i, s := range vocabulary {
		out[i] = s.name
	}

	return out
}

// Lookup parses a sysctl key into a known Name.
func Lookup(key string) (Name, bool) {
	n := Name(strings.TrimSpace(key))
	_, ok := byName[n]

	return n, ok
}

func (n Name) Known() bool {
	_, ok := byName[n]
	return ok
}

// Kind returns the value shape of a known parameter. Unknown names report
// KindScalar.
func (n Name) Kind() ValueKind {
	if i, ok := byName[n]; ok {
		return vocabulary[i].kind
	}

	return KindScalar
}

// Columns returns the flattened feature column names for n.
func (n Name) Columns() []string {
	i, ok := byName[n]
	if !ok {
		return nil
	}
	out := make([]string, len(vocabulary[i].columns))
	copy(out, vocabulary[i].columns)

	return out
}

func (n Name) order() int {
	if i, ok := byName[n]; ok {
		return i
	}

	return len(vocabulary)
}

func (n Name) String() string {
	return string(n)
}

// Columns returns the flattened feature columns of the whole vocabulary in
// canonical order.
func Columns() []string {
	var out []string
	for _, s := range vocabulary {
		out = append(out, s.columns...)
	}

	return out
}
