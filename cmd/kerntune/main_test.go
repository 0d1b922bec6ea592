package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings(t *testing.T) {
	settings, err := parseSettings([]string{"vm.swappiness=10", "net.ipv4.tcp_rmem=4096 87380 6291456"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"vm.swappiness":     "10",
		"net.ipv4.tcp_rmem": "4096 87380 6291456",
	}, settings)

	_, err = parseSettings([]string{"vm.swappiness"})
	assert.Error(t, err)
	_, err = parseSettings([]string{"=10"})
	assert.Error(t, err)
}

// sysctlTree creates writable parameter files under a temp root.
func sysctlTree(t *testing.T, keys ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, k := range keys {
		path := filepath.Join(root, filepath.FromSlash(keyPath(k)))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("0\n"), 0o644))
	}
	return root
}

func keyPath(key string) string {
	out := []byte(key)
	for i, c := range out {
		if c == '.' {
			out[i] = '/'
		}
	}
	return string(out)
}

func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kerntune.toml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return path
}

func TestApplyCommand(t *testing.T) {
	root := sysctlTree(t, "vm.swappiness")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"apply", "--config", emptyConfig(t), "--sysctl-root", root, "vm.swappiness=10"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(root, "vm", "swappiness"))
	require.NoError(t, err)
	assert.Equal(t, "10", string(bytes.TrimSpace(data)))
	assert.Contains(t, out.String(), "applied: vm.swappiness = 10")
}

func TestApplyCommandReportsFailures(t *testing.T) {
	root := sysctlTree(t, "vm.swappiness")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"apply", "--config", emptyConfig(t), "--sysctl-root", root, "vm.swappiness=30", "vm.missing_knob=1"})
	require.Error(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(root, "vm", "swappiness"))
	require.NoError(t, err)
	assert.Equal(t, "30", string(bytes.TrimSpace(data)))
	assert.Contains(t, out.String(), "failed:  vm.missing_knob")
}

func TestApplyCommandDryRun(t *testing.T) {
	root := sysctlTree(t, "vm.swappiness")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"apply", "--config", emptyConfig(t), "--sysctl-root", root, "--dry-run", "net.ipv4.tcp_rmem=4096 87380 6291456"})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "would run: sysctl -w")
	data, err := os.ReadFile(filepath.Join(root, "vm", "swappiness"))
	require.NoError(t, err)
	assert.Equal(t, "0", string(bytes.TrimSpace(data)))
}

func TestCollectRejectsInvalidLabel(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"collect", "--config", emptyConfig(t), "gpu_bound"})
	assert.Error(t, cmd.Execute())
}
