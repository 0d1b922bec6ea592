// Package snapshot holds point-in-time host metric readings.
package snapshot

import (
	"time"
)

// Well-known field names shared by the collector, the harness and the
// sample log.
const (
	FieldTimestamp    = "timestamp"
	FieldWorkloadType = "workload_type"
	FieldCPUPercent   = "cpu_percent"
	FieldExecTime     = "exec_time"
	FieldCPUAvg       = "cpu_avg"
	FieldPerfScore    = "perf_score"
	FieldRunID        = "run_id"
	FieldPhase        = "phase"

	// TimestampLayout is the textual form of the capture time.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Field is one named reading.
type Field struct {
	Name  string
	Value Value
}

// Snapshot is an ordered set of named readings captured at one instant.
// Field order is insertion order; setting an existing name replaces the
// value in place.
type Snapshot struct {
	Timestamp time.Time

	fields []Field
	index  map[string]int
}

func New(ts time.Time) *Snapshot {
	return &Snapshot{
		Timestamp: ts,
		index:     make(map[string]int),
	}
}

// Set adds or replaces a reading.
func (s *Snapshot) Set(name string, v Value) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[name]; ok {
		s.fields[i].Value = v
		return
	}
	s.index[name] = len(s.fields)
	s.fields = append(s.fields, Field{Name: name, Value: v})
}

func (s *Snapshot) SetNumber(name string, v float64) {
	s.Set(name, Number(v))
}

func (s *Snapshot) SetString(name, v string) {
	s.Set(name, String(v))
}

// Get returns the reading stored under name.
func (s *Snapshot) Get(name string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Value{}, false
	}

	return s.fields[i].Value, true
}

// Number returns the numeric reading stored under name.
func (s *Snapshot) Number(name string) (float64, bool) {
	v, ok := s.Get(name)
	if !ok {
		return 0, false
	}

	return v.Float()
}

// Text returns the textual form of the reading stored under name.
func (s *Snapshot) Text(name string) (string, bool) {
	v, ok := s.Get(name)
	if !ok {
		return "", false
	}

	return v.Text(), true
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}

	return len(s.fields)
}

// Fields returns a copy of the readings in insertion order.
func (s *Snapshot) Fields() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, len(s.fields))
	copy(out, s.fields)

	return out
}

// Record returns the readings keyed by name, including the rendered
// timestamp, as written to the sample log.
func (s *Snapshot) Record() map[string]string {
	rec := make(map[string]string, s.Len()+1)
	rec[FieldTimestamp] = s.Timestamp.Format(TimestampLayout)
	for _, f := range s.fields {
		rec[f.Name] = f.Value.Text()
	}

	return rec
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := New(s.Timestamp)
	c.fields = make([]Field, len(s.fields))
	copy(c.fields, s.fields)
	for k, v := range s.index {
		c.index[k] = v
	}

	return c
}

// With returns a copy with name set to v, leaving s untouched.
func (s *Snapshot) With(name string, v Value) *Snapshot {
	c := s.Clone()
	c.Set(name, v)

	return c
}
