// Package pipeline wires the producer, the gateway and the workers of a proving run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pico-network/prover/gateway"
	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/producer"
	"github.com/pico-network/prover/shared"
	"github.com/pico-network/prover/stage"
	"github.com/pico-network/prover/transport"
	"github.com/pico-network/prover/worker"
)

var ErrGPUUnavailable = errors.New("GPU proving is not available")

var (
	runsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Number of proving runs by result",
	}, []string{"result"})

	runDurationMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prover",
		Subsystem: "pipeline",
		Name:      "run_duration_seconds",
		Help:      "Duration of successful proving runs",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 20),
	})
)

type Pipeline struct {
	backend  stage.Backend
	renderer stage.Renderer
	cfg      Config
}

type newPipelineOptionFunc func(*Pipeline)

func WithConfig(cfg Config) newPipelineOptionFunc {
	return func(p *Pipeline) {
		p.cfg = cfg
	}
}

func New(backend stage.Backend, renderer stage.Renderer, opts ...newPipelineOptionFunc) *Pipeline {
	p := &Pipeline{
		backend:  backend,
		renderer: renderer,
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.ProverCount < 1 {
		p.cfg.ProverCount = 1
	}
	return p
}

// Prove runs one task to completion and returns its rendered proof.
//
// An empty proof is returned when the run finished without a usable proof (nothing was produced
// or rendering failed). A failing stage stops its worker without failing the run; it surfaces as
// the ProveTimeout expiring.
func (p *Pipeline) Prove(ctx context.Context, task shared.ProvingTask) ([]byte, error) {
	if task.UseGPU {
		runsMetric.WithLabelValues("rejected").Inc()
		return nil, ErrGPUUnavailable
	}
	stages, err := p.backend.Stages(task)
	if err != nil {
		runsMetric.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("preparing stages of %s: %w", task.Key, err)
	}

	runID := uuid.NewString()
	logger := logging.FromContext(ctx).Named("pipeline").With(
		zap.String("run", runID),
		zap.Object("task", task.Key),
	)
	ctx = logging.NewContext(ctx, logger)
	logger.Info("starting proving run", zap.Int("provers", p.cfg.ProverCount))
	started := time.Now()

	tr := transport.NewInMemory()
	runCtx, cancel := context.WithCancel(ctx)
	gw := gateway.New(tr, p.renderer)

	var eg errgroup.Group
	eg.Go(func() error { return gw.Run(runCtx) })
	for i := 0; i < p.cfg.ProverCount; i++ {
		w := worker.New(fmt.Sprintf("%s/%d", runID[:8], i), tr, stages, task.VerifyingKey)
		eg.Go(func() error { return w.Run(runCtx) })
	}
	prod := producer.New(p.backend, tr, producer.WithMaxChunks(p.cfg.MaxChunks))
	eg.Go(func() error { return prod.Run(runCtx, task) })

	waitCtx := ctx
	if p.cfg.ProveTimeout > 0 {
		var cancelWait context.CancelFunc
		waitCtx, cancelWait = context.WithTimeout(ctx, p.cfg.ProveTimeout)
		defer cancelWait()
	}

	var proof []byte
	select {
	case proof = <-gw.Completion():
	case <-waitCtx.Done():
		err = fmt.Errorf("proving %s: %w", task.Key, waitCtx.Err())
	}

	tr.Close()
	cancel()
	p.awaitShutdown(ctx, &eg)

	if err != nil {
		runsMetric.WithLabelValues("failed").Inc()
		logger.Error("proving run failed", zap.Error(err))
		return nil, err
	}
	runsMetric.WithLabelValues("ok").Inc()
	runDurationMetric.Observe(time.Since(started).Seconds())
	logger.Info("proving run complete", zap.Int("size", len(proof)), zap.Duration("duration", time.Since(started)))
	return proof, nil
}

// Estimate emulates the task without proving it, under the configured chunk limit.
func (p *Pipeline) Estimate(ctx context.Context, task shared.ProvingTask) (producer.Estimate, error) {
	if task.UseGPU {
		return producer.Estimate{}, ErrGPUUnavailable
	}
	est, err := producer.New(p.backend, nil, producer.WithMaxChunks(p.cfg.MaxChunks)).Estimate(ctx, task)
	if err != nil {
		return producer.Estimate{}, fmt.Errorf("estimating %s: %w", task.Key, err)
	}
	return est, nil
}

// awaitShutdown bounds the wait for the run goroutines. In-flight stages cannot be interrupted,
// so expiry is only logged.
func (p *Pipeline) awaitShutdown(ctx context.Context, eg *errgroup.Group) {
	logger := logging.FromContext(ctx)
	done := make(chan error, 1)
	go func() { done <- eg.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Warn("proving run goroutine failed", zap.Error(err))
		}
	case <-time.After(p.cfg.ShutdownTimeout):
		logger.Warn("timed out waiting for the proving run to stop", zap.Duration("timeout", p.cfg.ShutdownTimeout))
	}
}
