// Package stage declares the proving stages consumed by the pipeline.
//
// Stage execution is not cancellable: once started a stage runs to completion or fails.
package stage

import (
	"context"
	"errors"

	"github.com/pico-network/prover/shared"
)

var ErrVerificationFailed = errors.New("proof verification failed")

//go:generate mockgen -package mocks -destination mocks/stage.go . Emulator,Stages,Renderer,Backend

// Emulator executes a program and splits its trace into chunk records, calling emit for each of
// them in order.
type Emulator interface {
	Emulate(ctx context.Context, task shared.ProvingTask, emit func(shared.Record) error) error
}

// Stages are the per-task proving stages run by workers.
type Stages interface {
	// Convert proves a single chunk record.
	Convert(index shared.ChunkIndex, record shared.Record) (shared.IndexedProof, error)
	// Combine merges two adjacent proofs. flagComplete is set for the root merge.
	Combine(a, b shared.IndexedProof, flagComplete bool) (shared.IndexedProof, error)
	Compress(proof shared.IndexedProof) (shared.IndexedProof, error)
	Embed(proof shared.IndexedProof) (shared.IndexedProof, error)
	// Verify checks an embed proof against the verifying key of the task.
	Verify(proof shared.IndexedProof, verifyingKey []byte) error
}

// Renderer turns the embed proof into its portable form.
type Renderer interface {
	Render(ctx context.Context, embed shared.IndexedProof) ([]byte, error)
}

// Backend prepares the stages of a task.
type Backend interface {
	Emulator
	Stages(task shared.ProvingTask) (Stages, error)
}
