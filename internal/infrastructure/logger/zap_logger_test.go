package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/denggit/crypto-trading/internal/infrastructure/logger"
)

func TestNewLoggerFallsBackToInfoOnBadLevel(t *testing.T) {
	log, err := logger.NewLogger("not-a-level")
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(-1)) // debug stays off
}

func TestNewFileLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")

	log, err := logger.NewFileLogger(path, "info")
	require.NoError(t, err)

	log.Info("file sink check")
	_ = log.Sync() // stderr may reject sync; the file sink still flushes

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "file sink check")
}
