package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/kerntune/internal/config"
	"codeberg.org/mutker/kerntune/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kerntune.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
interval = "3s"
log_level = "debug"
monitor = true
strategy = "regression"
grid_limit = 12
sink = "exec"

[sampling]
duration = "4s"
interval = "1s"

[workload]
cpu_workers = 2
memory_mb = 64

[models.classifier]
type = "linear"
path = "/var/lib/kerntune/classifier.yaml"

[models.scorer]
type = "exec"
command = "python3"
args = ["score.py"]
timeout = "5s"

[sample_log]
format = "sqlite"
path = "/tmp/samples.db"
batch_size = 50
`)
	t.Setenv(config.ConfigEnv, path)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Interval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Monitor)
	assert.Equal(t, "regression", cfg.Strategy)
	assert.Equal(t, 12, cfg.GridLimit)
	assert.Equal(t, "exec", cfg.Sink)
	assert.Equal(t, 4*time.Second, cfg.Sampling.Duration)
	assert.Equal(t, time.Second, cfg.Sampling.Interval)
	assert.Equal(t, 2, cfg.Workload.Options().CPUWorkers)
	assert.Equal(t, 64, cfg.Workload.MemoryMB)
	assert.Equal(t, "linear", cfg.Models.Classifier.Type)
	assert.Equal(t, "/var/lib/kerntune/classifier.yaml", cfg.Models.Classifier.Path)
	assert.Equal(t, []string{"score.py"}, cfg.Models.Scorer.Args)
	assert.Equal(t, 5*time.Second, cfg.Models.Scorer.Timeout)
	assert.Equal(t, "sqlite", cfg.SampleLog.Format)
	assert.Equal(t, 50, cfg.SampleLog.BatchSize)
	assert.True(t, cfg.SampleLog.Enabled)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(nil, config.WithConfigFile(writeConfig(t, "")))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "search", cfg.Strategy)
	assert.Equal(t, 100, cfg.GridLimit)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, "procfs", cfg.Sink)
	assert.Equal(t, "/proc/sys", cfg.SysctlRoot)
	assert.Equal(t, 10*time.Second, cfg.Sampling.Duration)
	assert.Equal(t, 2*time.Second, cfg.Sampling.Interval)
	assert.Equal(t, "", cfg.Models.Regressor.Type)
	assert.Equal(t, "csv", cfg.SampleLog.Format)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, "interval = \"3s\"\nlog_level = \"warning\"\ntop_k = 2\n")
	t.Setenv("KERNTUNE_LOG_LEVEL", "error")
	t.Setenv("KERNTUNE_TOP_K", "7")
	t.Setenv("KERNTUNE_SAMPLING_DURATION", "20s")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--top-k", "9", "--dry-run"}))

	cfg, err := config.Load(fs)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Interval)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 9, cfg.TopK)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 20*time.Second, cfg.Sampling.Duration)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(nil, config.WithConfigFile(filepath.Join(t.TempDir(), "missing.toml")))
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
		field   string
	}{
		{"log level", `log_level = "verbose"`, errors.ErrInvalidLogLevel, "log_level"},
		{"interval", `interval = "0s"`, errors.ErrInvalidInterval, "interval"},
		{"strategy", `strategy = "random"`, errors.ErrInvalidStrategy, "strategy"},
		{"sink", `sink = "netlink"`, errors.ErrInvalidConfig, "sink"},
		{"top k", `top_k = 0`, errors.ErrInvalidConfig, "top_k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(nil, config.WithConfigFile(writeConfig(t, tt.content)))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code))

			var ve config.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field())
		})
	}
}

func TestLogLevel(t *testing.T) {
	assert.True(t, config.LogLevelWarning.IsValid())
	assert.False(t, config.LogLevel("trace").IsValid())
	assert.Equal(t, "debug", config.LogLevelDebug.String())
}
