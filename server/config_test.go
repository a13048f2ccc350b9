package server

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadingNonExistingConfigFile(t *testing.T) {
	cfg := Config{
		ConfigFile: "non-existing-file",
	}
	_, err := ReadConfigFile(&cfg)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.ConfigFile = filepath.Join(dir, "config.ini")
	content := `
datadir = /tmp
chunk-size = 4096
renderer-url = http://renderer:3000

[Pipeline]
prover-count = 16
prove-timeout = 30m
`
	require.NoError(t, os.WriteFile(cfg.ConfigFile, []byte(content), 0o600))

	cfg, err := ReadConfigFile(cfg)
	require.NoError(t, err)
	require.Equal(t, "/tmp", cfg.DataDir)
	require.Equal(t, 4096, cfg.ChunkSize)
	require.Equal(t, "http://renderer:3000", cfg.RendererURL)
	require.Equal(t, 16, cfg.Pipeline.ProverCount)
	require.Equal(t, 30*time.Minute, cfg.Pipeline.ProveTimeout)
	// untouched options keep their defaults
	require.Equal(t, 5*time.Second, cfg.Pipeline.ShutdownTimeout)
}

func TestReadConfigFilePathNotSet(t *testing.T) {
	cfg, err := ReadConfigFile(&Config{})
	require.NoError(t, err)
	require.Equal(t, &Config{}, cfg)
}

func TestSetupConfigMovesDirsUnderProverDir(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.ProverDir = dir
	cfg.LogDir = "/var/log/prover"

	cfg, err := SetupConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, defaultDataDirname), cfg.DataDir)
	require.Equal(t, filepath.Join(dir, defaultDbDirName), cfg.DbDir)
	require.Equal(t, "/var/log/prover", cfg.LogDir)
	require.DirExists(t, dir)
}

func TestCleanAndExpandPath(t *testing.T) {
	t.Setenv("PROVER_TEST_DIR", "/srv/prover")
	require.Equal(t, "", cleanAndExpandPath(""))
	require.Equal(t, "/srv/prover/data", cleanAndExpandPath("$PROVER_TEST_DIR/./data/"))

	u, err := user.Current()
	if err != nil {
		t.Skip("no current user")
	}
	require.Equal(t, filepath.Join(u.HomeDir, "prover"), cleanAndExpandPath("~/prover"))
}
