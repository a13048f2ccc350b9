package pipeline

import "time"

func DefaultConfig() Config {
	return Config{
		ProverCount:     4,
		ProveTimeout:    time.Hour,
		ShutdownTimeout: 5 * time.Second,
	}
}

//nolint:lll
type Config struct {
	ProverCount     int           `long:"prover-count"     description:"The number of workers proving a task"`
	MaxChunks       uint64        `long:"max-chunks"       description:"The maximum number of chunks of an execution (0 for no limit)"`
	ProveTimeout    time.Duration `long:"prove-timeout"    description:"The maximum duration of proving a task (0 for no limit)"`
	ShutdownTimeout time.Duration `long:"shutdown-timeout" description:"How long to wait for workers to stop once a proof is obtained"`
}
