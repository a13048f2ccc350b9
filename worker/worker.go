// Package worker implements the stateless proving workers of a pipeline run.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/messages"
	"github.com/pico-network/prover/shared"
	"github.com/pico-network/prover/stage"
	"github.com/pico-network/prover/transport"
)

var stageDurationMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "prover",
	Subsystem: "worker",
	Name:      "stage_duration_seconds",
	Help:      "Duration of proving stages",
	Buckets:   prometheus.ExponentialBuckets(0.001, 2, 20),
}, []string{"stage"})

var fastPathMetric = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "prover",
	Subsystem: "worker",
	Name:      "fast_path_total",
	Help:      "Number of final merges continued by the merging worker",
}, []string{"result"})

// Endpoint is the worker side of the transport.
type Endpoint interface {
	Pull(msg messages.Msg) error
	Tasks() <-chan messages.Msg
	Respond(msg messages.Msg) error
}

type Prover struct {
	id           string
	endpoint     Endpoint
	stages       stage.Stages
	verifyingKey []byte
}

func New(id string, endpoint Endpoint, stages stage.Stages, verifyingKey []byte) *Prover {
	return &Prover{
		id:           id,
		endpoint:     endpoint,
		stages:       stages,
		verifyingKey: verifyingKey,
	}
}

// Run pulls and executes tasks until Exit is received, the final proof is sent or the tasks
// channel is closed. Stage errors stop the worker and are returned.
func (p *Prover) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("worker").With(zap.String("worker", p.id))
	ctx = logging.NewContext(ctx, logger)
	logger.Debug("starting")
	defer func() {
		if err := p.endpoint.Pull(messages.Close{WorkerID: p.id}); err != nil {
			logger.Debug("could not announce stop", zap.Error(err))
		}
	}()

	for {
		if err := p.endpoint.Pull(messages.TaskRequest{}); err != nil {
			return nil
		}
		var msg messages.Msg
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-p.endpoint.Tasks():
			if !ok {
				logger.Debug("tasks channel closed")
				return nil
			}
			msg = m
		}

		stop, err := p.handle(ctx, msg)
		if errors.Is(err, transport.ErrClosed) {
			logger.Debug("transport closed while sending", zap.Error(err))
			return nil
		}
		if err != nil {
			logger.Error("task failed", zap.Stringer("msg", msg), zap.Error(err))
			return err
		}
		if stop {
			return nil
		}
	}
}

func (p *Prover) handle(ctx context.Context, msg messages.Msg) (bool, error) {
	logger := logging.FromContext(ctx)
	switch m := msg.(type) {
	case messages.ChunkReady:
		logger.Info("converting chunk", zap.Uint64("chunk", m.ChunkIndex))
		proof, err := timed("convert", func() (shared.IndexedProof, error) {
			return p.stages.Convert(m.ChunkIndex, m.Record)
		})
		if err != nil {
			return false, fmt.Errorf("converting chunk %d: %w", m.ChunkIndex, err)
		}
		return false, p.respond(messages.ChunkProved{Route: m.Route, ChunkIndex: m.ChunkIndex, Proof: proof})

	case messages.MergeRequest:
		return p.merge(ctx, m)

	case messages.CompressRequest:
		logger.Info("finishing root proof", zap.Stringer("proof", m.Proof))
		embed, err := p.finish(m.Proof)
		if err != nil {
			return false, err
		}
		if err := p.stages.Verify(embed, p.verifyingKey); err != nil {
			return false, fmt.Errorf("verifying final proof: %w", err)
		}
		return true, p.sendFinal(embed)

	case messages.Exit:
		logger.Debug("received exit")
		return true, nil

	default:
		return false, fmt.Errorf("unexpected task %v", msg)
	}
}

// merge combines two adjacent proofs. The root merge is continued inline up to the final proof.
func (p *Prover) merge(ctx context.Context, m messages.MergeRequest) (bool, error) {
	logger := logging.FromContext(ctx)
	logger.Info("merging proofs",
		zap.Uint64("chunk", m.ChunkIndex),
		zap.Stringer("left", m.Proofs[0]),
		zap.Stringer("right", m.Proofs[1]),
		zap.Bool("complete", m.FlagComplete),
	)
	if err := shared.CheckAdjacent(m.Proofs[0], m.Proofs[1]); err != nil {
		return false, err
	}
	merged, err := timed("combine", func() (shared.IndexedProof, error) {
		return p.stages.Combine(m.Proofs[0], m.Proofs[1], m.FlagComplete)
	})
	if err != nil {
		return false, fmt.Errorf("combining %v and %v: %w", m.Proofs[0], m.Proofs[1], err)
	}

	if m.FlagComplete {
		embed, err := p.finish(merged)
		if err != nil {
			return false, err
		}
		err = p.stages.Verify(embed, p.verifyingKey)
		if err == nil {
			fastPathMetric.WithLabelValues("ok").Inc()
			logger.Info("final proof verified", zap.Stringer("proof", embed))
			return true, p.sendFinal(embed)
		}
		fastPathMetric.WithLabelValues("verify_failed").Inc()
		logger.Error("failed to verify final proof, sending the merge result", zap.Error(err))
	}
	return false, p.respond(messages.MergeProved{Route: m.Route, ChunkIndex: m.ChunkIndex, Proof: merged})
}

// finish runs compress and embed on the root proof.
func (p *Prover) finish(root shared.IndexedProof) (shared.IndexedProof, error) {
	compressed, err := timed("compress", func() (shared.IndexedProof, error) {
		return p.stages.Compress(root)
	})
	if err != nil {
		return shared.IndexedProof{}, fmt.Errorf("compressing %v: %w", root, err)
	}
	embed, err := timed("embed", func() (shared.IndexedProof, error) {
		return p.stages.Embed(compressed)
	})
	if err != nil {
		return shared.IndexedProof{}, fmt.Errorf("embedding %v: %w", compressed, err)
	}
	return embed, nil
}

func (p *Prover) sendFinal(embed shared.IndexedProof) error {
	if err := p.respond(messages.FinalProof{Proof: embed}); err != nil {
		return err
	}
	return p.respond(messages.Exit{})
}

func (p *Prover) respond(msg messages.Msg) error {
	if err := p.endpoint.Respond(msg); err != nil {
		return fmt.Errorf("sending %v: %w", msg, err)
	}
	return nil
}

func timed(name string, f func() (shared.IndexedProof, error)) (shared.IndexedProof, error) {
	started := time.Now()
	proof, err := f()
	stageDurationMetric.WithLabelValues(name).Observe(time.Since(started).Seconds())
	return proof, err
}
