// Package features defines the column layouts shared by training data and
// model inference. A Schema turns a snapshot into a numeric row; every
// model is fed rows built from exactly one Schema.
package features

import (
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/workload"
)

// Host metric columns read by every model.
var hostColumns = []string{
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
	"tcp_congestion_encoded",
}

var (
	// Workload feeds the workload classifier.
	Workload = New("workload/v1", hostColumns)

	// Regression feeds the direct parameter regressor.
	Regression = New("regression/v1", hostColumns, []string{snapshot.FieldWorkloadType})

	// Score feeds the candidate scoring model.
	Score = New("score/v1", hostColumns,
		[]string{snapshot.FieldExecTime, snapshot.FieldCPUAvg, snapshot.FieldWorkloadType},
		params.Columns())
)

// Schema is an ordered, versioned list of numeric feature columns.
type Schema struct {
	name    string
	columns []string
	index   map[string]int
}

// New builds a schema from column groups concatenated in order.
func New(name string, groups ...[]string) *Schema {
	s := &Schema{name: name, index: make(map[string]int)}
	for _, g := range groups {
		for _, c := range g {
			if _, dup := s.index[c]; dup {
				continue
			}
			s.index[c] = len(s.columns)
			s.columns = append(s.columns, c)
		}
	}

	return s
}

func (s *Schema) Name() string {
	return s.name
}

// Columns returns a copy of the column names.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)

	return out
}

func (s *Schema) Width() int {
	return len(s.columns)
}

// Has reports whether column is part of the schema.
func (s *Schema) Has(column string) bool {
	_, ok := s.index[column]
	return ok
}

// Row encodes snap. Missing or non-numeric fields become 0; workload_type
// is encoded as its class index.
func (s *Schema) Row(snap *snapshot.Snapshot) []float64 {
	row := make([]float64, len(s.columns))
	for i, c := range s.columns {
		if c == snapshot.FieldWorkloadType {
			label, _ := snap.Text(c)
			row[i] = EncodeLabel(workload.Label(label))
			continue
		}
		if v, ok := snap.Number(c); ok {
			row[i] = v
		}
	}

	return row
}

// Set writes value into column of row if the schema has that column.
func (s *Schema) Set(row []float64, column string, value float64) {
	if i, ok := s.index[column]; ok && i < len(row) {
		row[i] = value
	}
}

// Get reads column from row, or 0 if absent.
func (s *Schema) Get(row []float64, column string) float64 {
	if i, ok := s.index[column]; ok && i < len(row) {
		return row[i]
	}

	return 0
}

// Overlay returns a copy of row with p's flattened values written over the
// matching tunable columns.
func (s *Schema) Overlay(row []float64, p params.Point) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	for col, v := range p.Features() {
		s.Set(out, col, v)
	}

	return out
}

// EncodeLabel maps a workload label to its numeric feature value. Labels
// outside the trained classes encode as -1.
func EncodeLabel(l workload.Label) float64 {
	return float64(l.Index())
}

// Stamp writes p's flattened values onto snap, the same columns Overlay
// fills at inference time.
func Stamp(snap *snapshot.Snapshot, p params.Point) {
	for _, s := range p.Settings() {
		cols := s.Name.Columns()
		vals := s.Value.Flatten()
		for i := range cols {
			if i < len(vals) {
				snap.SetNumber(cols[i], vals[i])
			}
		}
	}
}
