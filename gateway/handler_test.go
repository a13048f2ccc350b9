package gateway_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pico-network/prover/gateway"
	"github.com/pico-network/prover/messages"
	"github.com/pico-network/prover/prooftree"
	"github.com/pico-network/prover/shared"
)

func chunkProof(i shared.ChunkIndex) shared.IndexedProof {
	return shared.NewIndexedProof([]byte(fmt.Sprintf("chunk-%d", i)), i, i)
}

func merge(proofs [2]shared.IndexedProof) shared.IndexedProof {
	inner := append(append([]byte{}, proofs[0].Inner...), proofs[1].Inner...)
	return shared.NewIndexedProof(inner, proofs[0].StartChunk, proofs[1].EndChunk)
}

func process(t *testing.T, h *gateway.Handler, msg messages.Msg) messages.Msg {
	t.Helper()
	out, err := h.Process(msg)
	require.NoError(t, err)
	return out
}

// simulate registers n chunks, completes the producer and then applies worker results in a random
// order, returning the merge requests in emission order.
func simulate(t *testing.T, n int, seed int64) (*gateway.Handler, []messages.MergeRequest) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	h := gateway.NewHandler()
	var pending []messages.Msg
	for i := shared.ChunkIndex(0); i < shared.ChunkIndex(n); i++ {
		require.Nil(t, process(t, h, messages.ChunkReady{ChunkIndex: i}))
		pending = append(pending, messages.ChunkProved{ChunkIndex: i, Proof: chunkProof(i)})
	}
	require.Nil(t, process(t, h, messages.ProducerComplete{}))

	var merges []messages.MergeRequest
	for len(pending) > 0 {
		pick := rng.Intn(len(pending))
		msg := pending[pick]
		pending = append(pending[:pick], pending[pick+1:]...)

		switch out := process(t, h, msg).(type) {
		case nil:
		case messages.MergeRequest:
			require.NoError(t, shared.CheckAdjacent(out.Proofs[0], out.Proofs[1]))
			merges = append(merges, out)
			if !out.FlagComplete {
				pending = append(pending, messages.MergeProved{ChunkIndex: out.ChunkIndex, Proof: merge(out.Proofs)})
			}
		default:
			require.Failf(t, "unexpected output", "%v", out)
		}
	}
	return h, merges
}

func TestHandlerFlagsExactlyOneMerge(t *testing.T) {
	for _, n := range []int{4, 8} {
		n := n
		t.Run(fmt.Sprintf("%d chunks", n), func(t *testing.T) {
			for seed := int64(0); seed < 20; seed++ {
				_, merges := simulate(t, n, seed)
				require.Len(t, merges, n-1)

				var flagged int
				for _, m := range merges {
					if m.FlagComplete {
						flagged++
					}
				}
				require.Equal(t, 1, flagged)

				last := merges[len(merges)-1]
				require.True(t, last.FlagComplete, "the root merge is the last one")
				require.Equal(t, shared.ChunkIndex(0), last.Proofs[0].StartChunk)
				require.Equal(t, shared.ChunkIndex(n-1), last.Proofs[1].EndChunk)
			}
		})
	}
}

func TestHandlerCompletes(t *testing.T) {
	h, merges := simulate(t, 4, 1)
	require.False(t, h.Complete())

	final := merge(merges[len(merges)-1].Proofs)
	require.Equal(t, messages.Exit{}, process(t, h, messages.FinalProof{Proof: final}))
	require.True(t, h.Complete())
	proof, ok := h.FinalProof()
	require.True(t, ok)
	require.Equal(t, final, proof)

	// once complete every message yields Exit, even invalid ones
	require.Equal(t, messages.Exit{}, process(t, h, messages.ChunkReady{ChunkIndex: 0}))
	require.Equal(t, messages.Exit{}, process(t, h, messages.Exit{}))
}

func TestHandlerLateProducerComplete(t *testing.T) {
	h := gateway.NewHandler()
	require.Nil(t, process(t, h, messages.ChunkReady{ChunkIndex: 0}))
	require.Nil(t, process(t, h, messages.ChunkReady{ChunkIndex: 1}))
	require.Nil(t, process(t, h, messages.ChunkProved{ChunkIndex: 0, Proof: chunkProof(0)}))

	out := process(t, h, messages.ChunkProved{ChunkIndex: 1, Proof: chunkProof(1)})
	mergeReq, ok := out.(messages.MergeRequest)
	require.True(t, ok)
	require.False(t, mergeReq.FlagComplete, "more chunks may still come")

	merged := merge(mergeReq.Proofs)
	require.Nil(t, process(t, h, messages.MergeProved{ChunkIndex: mergeReq.ChunkIndex, Proof: merged}))

	require.Equal(t,
		messages.CompressRequest{ChunkIndex: 1, Proof: merged},
		process(t, h, messages.ProducerComplete{}),
	)
}

func TestHandlerSingleChunk(t *testing.T) {
	t.Run("producer completes first", func(t *testing.T) {
		h := gateway.NewHandler()
		require.Nil(t, process(t, h, messages.ChunkReady{ChunkIndex: 0}))
		require.Nil(t, process(t, h, messages.ProducerComplete{}))
		require.Equal(t,
			messages.CompressRequest{ChunkIndex: 0, Proof: chunkProof(0)},
			process(t, h, messages.ChunkProved{ChunkIndex: 0, Proof: chunkProof(0)}),
		)
	})
	t.Run("chunk is proved first", func(t *testing.T) {
		h := gateway.NewHandler()
		require.Nil(t, process(t, h, messages.ChunkReady{ChunkIndex: 0}))
		require.Nil(t, process(t, h, messages.ChunkProved{ChunkIndex: 0, Proof: chunkProof(0)}))
		require.Equal(t,
			messages.CompressRequest{ChunkIndex: 0, Proof: chunkProof(0)},
			process(t, h, messages.ProducerComplete{}),
		)
	})
}

func TestHandlerEmptyProduction(t *testing.T) {
	h := gateway.NewHandler()
	require.Equal(t, messages.Exit{}, process(t, h, messages.ProducerComplete{}))
	require.False(t, h.Complete())
	_, ok := h.FinalProof()
	require.False(t, ok)
}

func TestHandlerProtocolViolations(t *testing.T) {
	t.Run("duplicate chunk", func(t *testing.T) {
		h := gateway.NewHandler()
		require.Nil(t, process(t, h, messages.ChunkReady{ChunkIndex: 3}))
		_, err := h.Process(messages.ChunkReady{ChunkIndex: 3})
		require.ErrorIs(t, err, gateway.ErrProtocolViolation)
		require.ErrorIs(t, err, prooftree.ErrDuplicateNode)
	})
	t.Run("unknown chunk", func(t *testing.T) {
		h := gateway.NewHandler()
		_, err := h.Process(messages.ChunkProved{ChunkIndex: 3, Proof: chunkProof(3)})
		require.ErrorIs(t, err, gateway.ErrProtocolViolation)
		require.ErrorIs(t, err, prooftree.ErrUnknownNode)
	})
	t.Run("chunk after producer completed", func(t *testing.T) {
		h := gateway.NewHandler()
		require.Nil(t, process(t, h, messages.ChunkReady{ChunkIndex: 0}))
		require.Nil(t, process(t, h, messages.ProducerComplete{}))
		_, err := h.Process(messages.ChunkReady{ChunkIndex: 1})
		require.ErrorIs(t, err, gateway.ErrProtocolViolation)
	})
	t.Run("duplicate producer complete", func(t *testing.T) {
		h := gateway.NewHandler()
		require.Nil(t, process(t, h, messages.ChunkReady{ChunkIndex: 0}))
		require.Nil(t, process(t, h, messages.ProducerComplete{}))
		_, err := h.Process(messages.ProducerComplete{})
		require.ErrorIs(t, err, gateway.ErrProtocolViolation)
	})
	t.Run("unexpected messages", func(t *testing.T) {
		for _, msg := range []messages.Msg{
			messages.TaskRequest{},
			messages.Close{WorkerID: "w"},
			messages.Exit{},
			messages.MergeRequest{},
			messages.CompressRequest{},
		} {
			_, err := gateway.NewHandler().Process(msg)
			require.ErrorIs(t, err, gateway.ErrProtocolViolation, msg.String())
		}
	})
}
