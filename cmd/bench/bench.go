package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/pipeline"
	"github.com/pico-network/prover/shared"
	"github.com/pico-network/prover/stage"
)

func main() {
	if err := run(); err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run() error {
	runtime.MemProfileRate = 0

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(zap.WarnLevel, "", false)
	ctx := logging.NewContext(context.Background(), logger)

	if cfg.CPU {
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cant get current dir: %w", err)
		}
		profFilePath := path.Join(dir, "./CPU.prof")
		fmt.Printf("CPU profile: %s\n", profFilePath)

		f, err := os.Create(profFilePath)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	numChunks := uint64(1) << cfg.N
	program := make([]byte, numChunks*uint64(cfg.ChunkSize))
	if _, err := rand.Read(program); err != nil {
		return fmt.Errorf("no entropy: %w", err)
	}

	backend := stage.NewDigest(stage.WithChunkSize(cfg.ChunkSize))
	pk, vk := backend.Setup(program)
	task := shared.ProvingTask{
		Key:          shared.TaskKey{AppID: shared.AppIDFromVerifyingKey(vk), TaskID: "bench"},
		Program:      program,
		ProvingKey:   pk,
		VerifyingKey: vk,
	}

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.ProverCount = cfg.Provers
	p := pipeline.New(backend, backend, pipeline.WithConfig(pipelineCfg))

	fmt.Printf("chunks: %d, chunk size: %d, provers: %d\n", numChunks, cfg.ChunkSize, cfg.Provers)
	started := time.Now()
	proof, err := p.Prove(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to generate proof: %w", err)
	}
	elapsed := time.Since(started)

	fmt.Printf("Proof generated in %s (%f)\n", elapsed, elapsed.Seconds())
	fmt.Printf("Proof: %x\n", proof)
	fmt.Printf("Throughput: %s/s\n", ByteCountIEC(int(float64(len(program))/elapsed.Seconds())))
	return nil
}

func ByteCountIEC(b int) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB",
		float64(b)/float64(div), "KMGTPE"[exp])
}
