// Package producer turns a program execution into the ordered stream of chunks of a pipeline run.
package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/minio/sha256-simd"
	"go.uber.org/zap"

	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/messages"
	"github.com/pico-network/prover/shared"
	"github.com/pico-network/prover/stage"
)

var (
	ErrExceededChunkLimit = errors.New("execution exceeded the chunk limit")
	ErrUnterminatedTrace  = errors.New("execution trace is not terminated by its last record")
)

// Sink receives produced messages.
type Sink interface {
	Emit(msg messages.Msg) error
}

type Producer struct {
	emulator  stage.Emulator
	sink      Sink
	maxChunks uint64
}

type Option func(*Producer)

// WithMaxChunks bounds the number of chunks of one execution. Zero means no limit.
func WithMaxChunks(n uint64) Option {
	return func(p *Producer) {
		p.maxChunks = n
	}
}

func New(emulator stage.Emulator, sink Sink, opts ...Option) *Producer {
	p := &Producer{emulator: emulator, sink: sink}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run emulates the task, emitting a ChunkReady per record in order, then ProducerComplete.
// ProducerComplete is not sent when emulation fails.
func (p *Producer) Run(ctx context.Context, task shared.ProvingTask) error {
	logger := logging.FromContext(ctx).Named("producer").With(zap.Object("task", task.Key))

	chunks, err := p.walk(ctx, task, func(index shared.ChunkIndex, record shared.Record) error {
		msg := messages.ChunkReady{
			Route:      messages.Route{TaskID: task.Key.TaskID},
			ChunkIndex: index,
			Record:     record,
		}
		if err := p.sink.Emit(msg); err != nil {
			return fmt.Errorf("emitting chunk %d: %w", index, err)
		}
		logger.Debug("chunk emitted", zap.Uint64("chunk", index), zap.Int("size", len(record.Data)))
		return nil
	})
	if err != nil {
		logger.Error("emulation failed", zap.Uint64("chunks", chunks), zap.Error(err))
		return err
	}

	logger.Info("emulation complete", zap.Uint64("chunks", chunks))
	return p.sink.Emit(messages.ProducerComplete{})
}

// Estimate describes an execution without proving it.
type Estimate struct {
	Chunks    uint64
	TraceSize uint64
	// Digest is the sha256 of the whole execution trace.
	Digest [32]byte
}

// Estimate emulates the task under the same chunk limit as Run and emits nothing.
func (p *Producer) Estimate(ctx context.Context, task shared.ProvingTask) (Estimate, error) {
	var est Estimate
	hasher := sha256.New()
	chunks, err := p.walk(ctx, task, func(_ shared.ChunkIndex, record shared.Record) error {
		hasher.Write(record.Data)
		est.TraceSize += uint64(len(record.Data))
		return nil
	})
	if err != nil {
		return Estimate{}, err
	}
	est.Chunks = chunks
	hasher.Sum(est.Digest[:0])
	logging.FromContext(ctx).Debug("execution estimated",
		zap.Object("task", task.Key),
		zap.Uint64("chunks", est.Chunks),
		zap.Uint64("trace_size", est.TraceSize),
	)
	return est, nil
}

// walk emulates the task and hands every record to fn with its chunk index. It enforces the chunk
// limit and checks that the trace ends with exactly one record marked last.
func (p *Producer) walk(
	ctx context.Context,
	task shared.ProvingTask,
	fn func(shared.ChunkIndex, shared.Record) error,
) (uint64, error) {
	var next shared.ChunkIndex
	terminated := false
	err := p.emulator.Emulate(ctx, task, func(record shared.Record) error {
		if terminated {
			return fmt.Errorf("%w: record %d follows the last one", ErrUnterminatedTrace, next)
		}
		if p.maxChunks > 0 && next >= p.maxChunks {
			return fmt.Errorf("%w: %d", ErrExceededChunkLimit, p.maxChunks)
		}
		if err := fn(next, record); err != nil {
			return err
		}
		terminated = record.IsLast
		next++
		return nil
	})
	switch {
	case err != nil:
		return next, err
	case next > 0 && !terminated:
		return next, fmt.Errorf("%w: %d records", ErrUnterminatedTrace, next)
	}
	return next, nil
}
