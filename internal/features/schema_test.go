package features_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/kerntune/internal/features"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaLayouts(t *testing.T) {
	assert.Equal(t, 17, features.Workload.Width())
	assert.Equal(t, 18, features.Regression.Width())
	assert.Equal(t, 17+3+len(params.Columns()), features.Score.Width())

	cols := features.Score.Columns()
	assert.Equal(t, "cpu_percent", cols[0])
	assert.Equal(t, "exec_time", cols[17])
	assert.True(t, features.Score.Has("tcp_rmem_max"))
	assert.False(t, features.Workload.Has("workload_type"))
}

func TestRowMissingFieldsAreZero(t *testing.T) {
	row := features.Workload.Row(snapshot.New(time.Now()))
	require.Len(t, row, 17)
	for _, v := range row {
		assert.Zero(t, v)
	}
}

func TestRowEncodesLabel(t *testing.T) {
	snap := snapshot.New(time.Now())
	snap.SetNumber("cpu_percent", 88)
	snap.SetString("workload_type", "memory_bound")
	snap.SetString("tcp_congestion_control", "bbr")

	row := features.Regression.Row(snap)
	assert.InDelta(t, 88, features.Regression.Get(row, "cpu_percent"), 0)
	assert.InDelta(t, 2, features.Regression.Get(row, "workload_type"), 0)

	snap.SetString("workload_type", "unknown")
	row = features.Regression.Row(snap)
	assert.InDelta(t, -1, features.Regression.Get(row, "workload_type"), 0)
}

func TestOverlayAndStampAgree(t *testing.T) {
	p, err := params.ParsePoint(map[string]string{
		"vm.swappiness":     "30",
		"net.ipv4.tcp_rmem": "4096 87380 6291456",
	})
	require.NoError(t, err)

	base := features.Score.Row(snapshot.New(time.Now()))
	overlaid := features.Score.Overlay(base, p)
	assert.Zero(t, features.Score.Get(base, "vm_swappiness"))

	snap := snapshot.New(time.Now())
	features.Stamp(snap, p)
	stamped := features.Score.Row(snap)

	assert.Equal(t, overlaid, stamped)
	assert.InDelta(t, 6291456, features.Score.Get(stamped, "tcp_rmem_max"), 0)
}
