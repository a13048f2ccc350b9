package main

import (
	"github.com/jessevdk/go-flags"
)

const (
	defaultN         = 10
	defaultChunkSize = 256
	defaultProvers   = 4
	defaultCPU       = false
)

// config defines the configuration options for bench.
type config struct {
	N         uint `short:"n" description:"log2 of the number of chunks of the benchmarked execution"`
	ChunkSize int  `short:"s" description:"chunk size in bytes"`
	Provers   int  `short:"p" description:"number of workers"`
	CPU       bool `short:"c" description:"whether to enable CPU profiling"`
}

// loadConfig initializes and parses the config using command line options.
func loadConfig() (*config, error) {
	cfg := config{
		N:         defaultN,
		ChunkSize: defaultChunkSize,
		Provers:   defaultProvers,
		CPU:       defaultCPU,
	}

	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
