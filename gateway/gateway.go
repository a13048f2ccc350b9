// Package gateway coordinates one pipeline run: it registers produced chunks, routes work to the
// workers and collects their results until the final proof is rendered.
package gateway

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
	"github.com/pico-network/prover/stage"
	"github.com/pico-network/prover/transport"
)

var (
	messagesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "gateway",
		Name:      "messages_total",
		Help:      "Number of messages processed by the gateway",
	}, []string{"source"})

	mergeRequestsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prover",
		Subsystem: "gateway",
		Name:      "merge_requests_total",
		Help:      "Number of merge requests dispatched to workers",
	})

	renderLatencyMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prover",
		Subsystem: "gateway",
		Name:      "render_latency_seconds",
		Help:      "Latency of rendering the final proof",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16),
	})
)

// Endpoint is the gateway side of the transport.
type Endpoint interface {
	// NextProduced returns the next producer message without blocking, or ErrClosed.
	NextProduced() (messages.Msg, bool, error)
	ProducedReady() <-chan struct{}
	Pulls() <-chan messages.Msg
	Results() <-chan messages.Msg
	Dispatch(msg messages.Msg) error
}

type Gateway struct {
	handler    *Handler
	endpoint   Endpoint
	renderer   stage.Renderer
	completion chan []byte
}

func New(endpoint Endpoint, renderer stage.Renderer) *Gateway {
	return &Gateway{
		handler:    NewHandler(),
		endpoint:   endpoint,
		renderer:   renderer,
		completion: make(chan []byte, 1),
	}
}

// Completion delivers the rendered proof once. An empty proof means the run finished without a
// usable proof.
func (g *Gateway) Completion() <-chan []byte {
	return g.completion
}

// Run processes messages until the run completes or a channel is closed.
// Produced messages take priority: the producer is drained before every worker message is applied.
func (g *Gateway) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("gateway")
	ctx = logging.NewContext(ctx, logger)
	logger.Debug("starting")

	for {
		if done, err := g.drainProduced(ctx); done || err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-g.endpoint.ProducedReady():
		case msg, ok := <-g.endpoint.Results():
			if !ok {
				logger.Debug("results channel closed")
				return nil
			}
			if done, err := g.drainProduced(ctx); done || err != nil {
				return err
			}
			if done, err := g.fromWorker(ctx, msg); done || err != nil {
				return err
			}
		case msg, ok := <-g.endpoint.Pulls():
			if !ok {
				logger.Debug("pulls channel closed")
				return nil
			}
			messagesMetric.WithLabelValues("pulls").Inc()
			switch m := msg.(type) {
			case messages.TaskRequest:
				// meaningful only when workers are remote
			case messages.Close:
				logger.Debug("worker stopped", zap.String("worker", m.WorkerID))
			default:
				return fmt.Errorf("%w: unexpected %v on pulls", ErrProtocolViolation, msg)
			}
		}
	}
}

// drainProduced applies every pending producer message. It reports done when the run finished or
// the producer flow is closed.
func (g *Gateway) drainProduced(ctx context.Context) (bool, error) {
	for {
		msg, ok, err := g.endpoint.NextProduced()
		switch {
		case errors.Is(err, transport.ErrClosed):
			logging.FromContext(ctx).Debug("producer channel closed")
			return true, nil
		case err != nil:
			return true, err
		case !ok:
			return false, nil
		}
		if done, err := g.fromProducer(ctx, msg); done || err != nil {
			return true, err
		}
	}
}

func (g *Gateway) fromProducer(ctx context.Context, msg messages.Msg) (bool, error) {
	messagesMetric.WithLabelValues("producer").Inc()
	switch msg.(type) {
	case messages.ChunkReady, messages.ProducerComplete:
	default:
		return false, fmt.Errorf("%w: unexpected %v from producer", ErrProtocolViolation, msg)
	}
	out, err := g.handler.Process(msg)
	if err != nil {
		logging.FromContext(ctx).Error("failed to process message", zap.Stringer("msg", msg), zap.Error(err))
		return false, err
	}
	if _, ok := msg.(messages.ChunkReady); ok {
		if err := g.endpoint.Dispatch(msg); err != nil {
			return false, fmt.Errorf("forwarding %v: %w", msg, err)
		}
	}
	return g.handleOutput(ctx, out)
}

func (g *Gateway) fromWorker(ctx context.Context, msg messages.Msg) (bool, error) {
	messagesMetric.WithLabelValues("results").Inc()
	switch msg.(type) {
	case messages.ChunkProved, messages.MergeProved, messages.FinalProof, messages.Exit:
	default:
		return false, fmt.Errorf("%w: unexpected %v from worker", ErrProtocolViolation, msg)
	}
	out, err := g.handler.Process(msg)
	if err != nil {
		logging.FromContext(ctx).Error("failed to process message", zap.Stringer("msg", msg), zap.Error(err))
		return false, err
	}
	if ce := logging.FromContext(ctx).Check(zap.DebugLevel, "applied worker result"); ce != nil {
		ce.Write(zap.Stringer("msg", msg), zap.String("tree", g.handler.Tree()))
	}
	return g.handleOutput(ctx, out)
}

func (g *Gateway) handleOutput(ctx context.Context, out messages.Msg) (bool, error) {
	logger := logging.FromContext(ctx)
	switch m := out.(type) {
	case nil:
		return false, nil
	case messages.Exit:
		g.finalize(ctx)
		return true, nil
	case messages.MergeRequest:
		mergeRequestsMetric.Inc()
		logger.Debug("dispatching merge", zap.Stringer("msg", m), zap.Bool("complete", m.FlagComplete))
	case messages.CompressRequest:
		logger.Info("root proved without a final merge, dispatching compress", zap.Stringer("msg", m))
	default:
		return false, fmt.Errorf("%w: unexpected output %v", ErrProtocolViolation, out)
	}
	if err := g.endpoint.Dispatch(out); err != nil {
		return false, fmt.Errorf("dispatching %v: %w", out, err)
	}
	return false, nil
}

// finalize renders the final proof and publishes it. Render failures publish an empty proof.
func (g *Gateway) finalize(ctx context.Context) {
	logger := logging.FromContext(ctx)
	proof, ok := g.handler.FinalProof()
	if !ok {
		logger.Error("exiting without a final proof")
		g.publish(nil)
		return
	}

	logger.Info("proving complete, rendering final proof", zap.Stringer("proof", proof))
	started := time.Now()
	rendered, err := g.renderer.Render(ctx, proof)
	renderLatencyMetric.Observe(time.Since(started).Seconds())
	if err != nil {
		logger.Error("failed to render final proof", zap.Error(err))
		rendered = nil
	}
	logger.Info("publishing final proof", zap.Int("size", len(rendered)))
	g.publish(rendered)
}

func (g *Gateway) publish(proof []byte) {
	if proof == nil {
		proof = []byte{}
	}
	select {
	case g.completion <- proof:
	default:
	}
}
