package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/queue"
	"github.com/pico-network/prover/server"
)

// Prover binary version.
// It should be passed during the build with '-ldflags "-X main.version="'.
var version = "unknown"

const lookupInterval = 100 * time.Millisecond

// proverMain is the true entry point for the prover. This function is required since
// defers created in the top-level scope of a main method aren't executed if
// os.Exit() is called.
func proverMain() error {
	var err error
	// Start with a default Config with sane settings
	cfg := server.DefaultConfig()
	// Pre-parse the command line to check for an alternative Config file
	cfg, err = server.ParseFlags(cfg)
	if err != nil {
		return err
	}
	// Load configuration file overwriting defaults with any specified options
	cfg, err = server.ReadConfigFile(cfg)
	if err != nil {
		return err
	}

	cfg, err = server.SetupConfig(cfg)
	if err != nil {
		return err
	}
	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	cfg, err = server.ParseFlags(cfg)
	if err != nil {
		return err
	}

	logLevel := zap.InfoLevel
	if cfg.DebugLog {
		logLevel = zap.DebugLevel
	}
	logger := logging.NewWithRotation(
		logLevel,
		filepath.Join(cfg.LogDir, "prover.log"),
		cfg.JSONLog,
		logging.Rotation{MaxSizeMB: cfg.MaxLogFileSize, MaxBackups: cfg.MaxLogFiles},
	)
	ctx := logging.NewContext(context.Background(), logger)

	defer func() {
		logger.Info("shutdown complete")
	}()

	logger.Sugar().Infof("version: %s, dir: %v, datadir: %v", version, cfg.ProverDir, cfg.DataDir)

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		logger.Sugar().Infof("starting HTTP profiling on port %v", cfg.Profile)
		go func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			fmt.Println(http.ListenAndServe(listenAddr, nil))
		}()
	} else {
		// Disable go default unbounded memory profiler.
		runtime.MemProfileRate = 0
	}

	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			logger.With(zap.Error(err)).Error("could not create CPU profile")
		} else {
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				logger.With(zap.Error(err)).Error("could not start CPU profile")
			}
			defer pprof.StopCPUProfile()
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	srv, err := server.New(ctx, *cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("failed to close server", zap.Error(err))
		}
	}()

	if cfg.ProveFile == "" {
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failure in server: %w", err)
		}
		return nil
	}
	return proveOnce(ctx, srv, cfg)
}

// proveOnce proves the configured program, prints its proof in hex and stops the server.
func proveOnce(ctx context.Context, srv *server.Server, cfg *server.Config) error {
	program, err := os.ReadFile(cfg.ProveFile)
	if err != nil {
		return fmt.Errorf("reading program: %w", err)
	}
	var inputs []byte
	if cfg.InputsFile != "" {
		if inputs, err = os.ReadFile(cfg.InputsFile); err != nil {
			return fmt.Errorf("reading inputs: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	var eg errgroup.Group
	eg.Go(func() error { return srv.Start(ctx) })
	defer func() {
		cancel()
		_ = eg.Wait()
	}()

	key, err := srv.Submit(ctx, program, inputs)
	if err != nil {
		return err
	}
	waitCtx := ctx
	if cfg.Pipeline.ProveTimeout > 0 {
		var cancelWait context.CancelFunc
		waitCtx, cancelWait = context.WithTimeout(ctx, cfg.Pipeline.ProveTimeout+cfg.Pipeline.ShutdownTimeout)
		defer cancelWait()
	}

	ticker := time.NewTicker(lookupInterval)
	defer ticker.Stop()
	for {
		proof, err := srv.Lookup(waitCtx, key)
		switch {
		case err == nil:
			fmt.Println(hex.EncodeToString(proof))
			return nil
		case !errors.Is(err, queue.ErrNotFound):
			return err
		}
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("waiting for the proof of %s: %w", key, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := proverMain(); err != nil {
		// If it's the flag utility error don't print it,
		// because it was already printed.
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
