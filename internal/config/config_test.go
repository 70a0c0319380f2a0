package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhp30760/sharestream-local/pkg/transfer"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8660, cfg.ListenPort)
	assert.Equal(t, transfer.DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, transfer.DefaultPacingInterval, cfg.PacingInterval)
	assert.Equal(t, "./sharestream-data", cfg.StorePath)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "device_name: workbench\nlisten_port: 9000\nchunk_size: 8192\npacing_interval: 5ms\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "workbench", cfg.DeviceName)
	assert.Equal(t, 9000, cfg.ListenPort)
	assert.Equal(t, 8192, cfg.ChunkSize)
	assert.Equal(t, 5*time.Millisecond, cfg.PacingInterval)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("chunk_size: -1\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestTransferConfig(t *testing.T) {
	cfg := &AppConfig{ChunkSize: 1024, PacingInterval: time.Millisecond}
	tc := cfg.TransferConfig()
	assert.Equal(t, 1024, tc.ChunkSize)
	assert.Equal(t, time.Millisecond, tc.PacingInterval)
	require.NoError(t, tc.Validate())
}
