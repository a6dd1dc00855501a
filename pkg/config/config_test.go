package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mosaic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("count_edge_processors: 4\nalgorithm: sssp\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.CountEdgeProcessors)
	require.Equal(t, "sssp", cfg.Algorithm)
	require.Equal(t, 1, cfg.CountGlobalReducers) // untouched default
}

func TestValidateRejectsUnknownAlgorithm(t *testing.T) {
	cfg := Default()
	cfg.Algorithm = "not-a-real-algorithm"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroEdgeProcessors(t *testing.T) {
	cfg := Default()
	cfg.CountEdgeProcessors = 0
	require.Error(t, cfg.Validate())
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mosaic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: 10\n"), 0o644))

	reloaded := make(chan Config, 1)
	_, err := Watch(path, func(cfg Config, _ fsnotify.Event) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("max_iterations: 20\n"), 0o644))

	select {
	case cfg := <-reloaded:
		require.Equal(t, 20, cfg.MaxIterations)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
