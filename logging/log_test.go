package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/pico-network/prover/logging"
)

func TestContextCarriesLogger(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := logging.NewContext(context.Background(), logger)
	require.Same(t, logger, logging.FromContext(ctx))
}

func TestFromContextFallsBack(t *testing.T) {
	require.NotNil(t, logging.FromContext(context.Background()))
}

func TestWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prover.log")
	logger := logging.NewWithRotation(zap.InfoLevel, path, true, logging.Rotation{MaxSizeMB: 1, MaxBackups: 2})
	logger.Info("hello", zap.String("component", "test"))
	_ = logger.Sync() // stdout may not support fsync

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
	require.Contains(t, string(data), `"component":"test"`)
}
