package snapshot_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/kerntune/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPreservesOrder(t *testing.T) {
	s := snapshot.New(time.Unix(0, 0))
	s.SetNumber("cpu_percent", 12.5)
	s.SetString("tcp_congestion_control", "cubic")
	s.SetNumber("cpu_percent", 40)

	fields := s.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "cpu_percent", fields[0].Name)
	assert.Equal(t, "40", fields[0].Value.Text())
	assert.Equal(t, "tcp_congestion_control", fields[1].Name)
}

func TestNumberFromText(t *testing.T) {
	s := snapshot.New(time.Now())
	s.SetString("load_avg_1", "1.25")
	s.SetString("workload_type", "cpu_bound")

	v, ok := s.Number("load_avg_1")
	assert.True(t, ok)
	assert.InDelta(t, 1.25, v, 1e-9)

	_, ok = s.Number("workload_type")
	assert.False(t, ok)

	_, ok = s.Number("missing")
	assert.False(t, ok)
}

func TestWithDoesNotMutate(t *testing.T) {
	s := snapshot.New(time.Now())
	s.SetNumber("cpu_percent", 5)

	tagged := s.With(snapshot.FieldWorkloadType, snapshot.String("io_bound"))

	_, ok := s.Get(snapshot.FieldWorkloadType)
	assert.False(t, ok)
	label, ok := tagged.Text(snapshot.FieldWorkloadType)
	assert.True(t, ok)
	assert.Equal(t, "io_bound", label)
}

func TestRecordIncludesTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	s := snapshot.New(ts)
	s.SetNumber("mem_percent", 33.3)

	rec := s.Record()
	assert.Equal(t, "2024-05-01 10:30:00", rec[snapshot.FieldTimestamp])
	assert.Equal(t, "33.3", rec["mem_percent"])
}
