// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (c) 2017-2023 The Spacemesh developers

package server

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/pipeline"
	"github.com/pico-network/prover/queue"
	"github.com/pico-network/prover/render"
	"github.com/pico-network/prover/stage"
)

const (
	defaultDbDirName      = "db"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
	defaultRPCPort        = 50003
)

// Config defines the configuration options of the prover daemon.
//
//nolint:lll
type Config struct {
	ProverDir      string  `long:"proverdir"      description:"The base directory that contains the prover's data, logs, configuration file, etc."`
	ConfigFile     string  `long:"configfile"     description:"Path to configuration file"                                                          short:"c"`
	DataDir        string  `long:"datadir"        description:"The directory to store the prover's data within."                                    short:"b"`
	DbDir          string  `long:"dbdir"          description:"The directory to store DBs within"`
	LogDir         string  `long:"logdir"         description:"Directory to log output."`
	DebugLog       bool    `long:"debuglog"       description:"Enable debug logs"`
	JSONLog        bool    `long:"jsonlog"        description:"Whether to log in JSON format"`
	MaxLogFiles    int     `long:"maxlogfiles"    description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int     `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	RawRPCListener string  `long:"rpclisten"      description:"The interface/port/socket to listen for gRPC health checks"                           short:"r"`
	MetricsPort    *uint16 `long:"metrics-port"   description:"The port to expose metrics"`

	CPUProfile string `long:"cpuprofile" description:"Write CPU profile to the specified file"`
	Profile    string `long:"profile"    description:"Enable HTTP profiling on given port -- must be between 1024 and 65535"`

	ProveFile  string `long:"prove"  description:"Prove the program in the given file once, print the proof and exit"`
	InputsFile string `long:"inputs" description:"File with the inputs of the program given with --prove"`

	ChunkSize       int `long:"chunk-size"        description:"The size in bytes of an execution chunk"`
	OutputCacheSize int `long:"output-cache-size" description:"The number of proofs kept in memory until retrieved"`

	RendererURL           string        `long:"renderer-url"            description:"The URL of the remote proof renderer (local rendering when empty)"`
	RendererTimeout       time.Duration `long:"renderer-timeout"        description:"The maximum duration of a remote render request"`
	RendererCheckInterval time.Duration `long:"renderer-check-interval" description:"How often the liveness of the remote renderer is checked"`

	Pipeline pipeline.Config `group:"Pipeline"`
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	proverDir := "./prover"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		proverDir = filepath.Join(cacheDir, "prover")
	}

	return &Config{
		ProverDir:             proverDir,
		DataDir:               filepath.Join(proverDir, defaultDataDirname),
		DbDir:                 filepath.Join(proverDir, defaultDbDirName),
		LogDir:                filepath.Join(proverDir, defaultLogDirname),
		MaxLogFiles:           defaultMaxLogFiles,
		MaxLogFileSize:        defaultMaxLogFileSize,
		RawRPCListener:        fmt.Sprintf("localhost:%d", defaultRPCPort),
		ChunkSize:             stage.DefaultChunkSize,
		OutputCacheSize:       queue.DefaultCacheSize,
		RendererTimeout:       render.DefaultTimeout,
		RendererCheckInterval: render.DefaultCheckInterval,
		Pipeline:              pipeline.DefaultConfig(),
	}
}

// ParseFlags reads values from command line arguments.
func ParseFlags(preCfg *Config) (*Config, error) {
	if _, err := flags.Parse(preCfg); err != nil {
		return nil, err
	}
	return preCfg, nil
}

// ReadConfigFile reads config from an ini file.
// It uses the provided `cfg` as a base config and overrides it with the values
// from the config file.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Sugar().Debugf("reading config from %s", cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}

	return cfg, nil
}

// SetupConfig expands paths and initializes filesystem.
func SetupConfig(cfg *Config) (*Config, error) {
	// If the provided prover directory is not the default, we'll modify the
	// path to all of the files and directories that will live within it.
	defaultCfg := DefaultConfig()
	if cfg.ProverDir != defaultCfg.ProverDir {
		if cfg.DataDir == defaultCfg.DataDir {
			cfg.DataDir = filepath.Join(cfg.ProverDir, defaultDataDirname)
		}
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.ProverDir, defaultLogDirname)
		}
		if cfg.DbDir == defaultCfg.DbDir {
			cfg.DbDir = filepath.Join(cfg.ProverDir, defaultDbDirName)
		}
	}

	if err := os.MkdirAll(cfg.ProverDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.ProverDir, err)
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.DbDir = cleanAndExpandPath(cfg.DbDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	return cfg, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}
