package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, validate(&cfg))
	require.Equal(t, 100, cfg.Batch.Size)
	require.Equal(t, 3, cfg.Retry.Attempts)
	require.Equal(t, 2020, cfg.DateWindow.MinYear)
	require.Equal(t, 2040, cfg.DateWindow.MaxYear)
}

func TestLoaderLoadsYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch:\n  size: 250\nstore:\n  uri: mongodb://store:27017\n"), 0o644))

	loader := NewLoader(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, 250, cfg.Batch.Size)
	require.Equal(t, "mongodb://store:27017", cfg.Store.URI)
	require.Equal(t, 3, cfg.Retry.Attempts) // unset field keeps the default
}

func TestLoaderMissingFileFails(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	_, err := loader.Load()
	require.Error(t, err)
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch:\n  size: 50\n"), 0o644))

	t.Setenv("TITLEPARSER_BATCH_SIZE", "500")
	t.Setenv("TITLEPARSER_RETRY_ATTEMPTS", "5")
	t.Setenv("TITLEPARSER_STORE_URI", "mongodb://override:27017")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	require.Equal(t, 500, cfg.Batch.Size)
	require.Equal(t, 5, cfg.Retry.Attempts)
	require.Equal(t, "mongodb://override:27017", cfg.Store.URI)
}

func TestValidateRejectsBadDateWindow(t *testing.T) {
	cfg := Default()
	cfg.DateWindow.MinYear = 2040
	cfg.DateWindow.MaxYear = 2020
	require.Error(t, validate(&cfg))
}

func TestValidateRejectsZeroBatchSize(t *testing.T) {
	cfg := Default()
	cfg.Batch.Size = 0
	require.Error(t, validate(&cfg))
}

func TestWriteDefaultProducesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	require.Equal(t, Default().Batch.Size, cfg.Batch.Size)
}
