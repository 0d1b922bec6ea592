package telemetry_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/kerntune/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesMetrics(t *testing.T) {
	telemetry.ObserveTick("sampled")
	telemetry.ObserveTransition("", "cpu_bound")
	telemetry.ObserveApply("vm.swappiness", "applied")
	telemetry.ObserveRecommendation("search", 20*time.Millisecond)
	telemetry.SetPerfScore("cpu_bound", 0.5)
	telemetry.AddSamples("cpu_bound", 2)

	srv := httptest.NewServer(telemetry.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `kerntune_loop_ticks_total{status="sampled"}`)
	assert.Contains(t, text, `kerntune_workload_transitions_total{from="none",to="cpu_bound"} 1`)
	assert.Contains(t, text, `kerntune_parameter_applies_total{parameter="vm.swappiness",status="applied"}`)
	assert.Contains(t, text, `kerntune_perf_score{workload="cpu_bound"} 0.5`)
	assert.Contains(t, text, "kerntune_recommendation_duration_seconds_bucket")
}

func TestServeDisabled(t *testing.T) {
	assert.NoError(t, telemetry.Serve(context.Background(), ""))
}
