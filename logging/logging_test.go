package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileLogging(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quiet = true
	cfg.Level = "debug"
	cfg.File = filepath.Join(t.TempDir(), "host.log")

	logger, closeLog, err := New(cfg)
	require.NoError(t, err)
	logger.Debug("contract log", zap.String("contract", "c1"))
	require.NoError(t, closeLog())

	b, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"contract log"`)
	assert.Contains(t, string(b), `"contract":"c1"`)
}

func TestLevelFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quiet = true
	cfg.File = filepath.Join(t.TempDir(), "host.log")

	logger, closeLog, err := New(cfg)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Warn("shown")
	require.NoError(t, closeLog())

	b, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hidden")
	assert.Contains(t, string(b), "shown")
}

func TestBadLevel(t *testing.T) {
	_, _, err := New(Config{Level: "loud"})
	require.Error(t, err)
}

func TestQuietWithoutFileIsNop(t *testing.T) {
	logger, closeLog, err := New(Config{Quiet: true})
	require.NoError(t, err)
	logger.Info("dropped")
	assert.NoError(t, closeLog())
}
