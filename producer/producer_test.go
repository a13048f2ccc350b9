package producer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/messages"
	"github.com/pico-network/prover/producer"
	"github.com/pico-network/prover/shared"
	"github.com/pico-network/prover/stage"
	"github.com/pico-network/prover/stage/mocks"
)

type sink struct {
	msgs []messages.Msg
	err  error
}

func (s *sink) Emit(msg messages.Msg) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func TestProducerEmitsChunksInOrder(t *testing.T) {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	task := shared.ProvingTask{Key: shared.TaskKey{AppID: "app", TaskID: "task"}, Program: []byte("abcdefg")}

	var out sink
	p := producer.New(stage.NewDigest(stage.WithChunkSize(3)), &out)
	require.NoError(t, p.Run(ctx, task))

	route := messages.Route{TaskID: "task"}
	require.Equal(t, []messages.Msg{
		messages.ChunkReady{Route: route, ChunkIndex: 0, Record: shared.Record{Data: []byte("abc")}},
		messages.ChunkReady{Route: route, ChunkIndex: 1, Record: shared.Record{Data: []byte("def")}},
		messages.ChunkReady{Route: route, ChunkIndex: 2, Record: shared.Record{Data: []byte("g"), IsLast: true}},
		messages.ProducerComplete{},
	}, out.msgs)
}

func TestProducerEmptyExecution(t *testing.T) {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	var out sink
	require.NoError(t, producer.New(stage.NewDigest(), &out).Run(ctx, shared.ProvingTask{}))
	require.Equal(t, []messages.Msg{messages.ProducerComplete{}}, out.msgs)
}

func TestProducerChunkLimit(t *testing.T) {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	var out sink
	p := producer.New(stage.NewDigest(stage.WithChunkSize(1)), &out, producer.WithMaxChunks(2))

	err := p.Run(ctx, shared.ProvingTask{Program: []byte("abc")})
	require.ErrorIs(t, err, producer.ErrExceededChunkLimit)
	require.Len(t, out.msgs, 2)
	for _, msg := range out.msgs {
		require.IsType(t, messages.ChunkReady{}, msg)
	}
}

func TestProducerEmulationError(t *testing.T) {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	emulator := mocks.NewMockEmulator(gomock.NewController(t))
	boom := errors.New("boom")
	emulator.EXPECT().Emulate(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ shared.ProvingTask, emit func(shared.Record) error) error {
			require.NoError(t, emit(shared.Record{Data: []byte("first")}))
			return boom
		},
	)

	var out sink
	require.ErrorIs(t, producer.New(emulator, &out).Run(ctx, shared.ProvingTask{}), boom)
	require.Len(t, out.msgs, 1, "no ProducerComplete after a failure")
}

func TestProducerSinkError(t *testing.T) {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	closed := errors.New("closed")
	out := sink{err: closed}
	err := producer.New(stage.NewDigest(), &out).Run(ctx, shared.ProvingTask{Program: []byte("abc")})
	require.ErrorIs(t, err, closed)
}

func TestProducerRequiresTerminatedTrace(t *testing.T) {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	for _, tc := range []struct {
		name    string
		records []shared.Record
	}{
		{
			name:    "last record not marked",
			records: []shared.Record{{Data: []byte("a")}, {Data: []byte("b")}},
		},
		{
			name:    "record after the last one",
			records: []shared.Record{{Data: []byte("a"), IsLast: true}, {Data: []byte("b"), IsLast: true}},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			emulator := mocks.NewMockEmulator(gomock.NewController(t))
			emulator.EXPECT().Emulate(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, _ shared.ProvingTask, emit func(shared.Record) error) error {
					for _, record := range tc.records {
						if err := emit(record); err != nil {
							return err
						}
					}
					return nil
				},
			)

			var out sink
			err := producer.New(emulator, &out).Run(ctx, shared.ProvingTask{})
			require.ErrorIs(t, err, producer.ErrUnterminatedTrace)
			for _, msg := range out.msgs {
				require.IsType(t, messages.ChunkReady{}, msg, "no ProducerComplete for an unterminated trace")
			}
		})
	}
}

func TestEstimate(t *testing.T) {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	task := shared.ProvingTask{Program: []byte("abcdefg"), Inputs: []byte("hi")}

	var out sink
	p := producer.New(stage.NewDigest(stage.WithChunkSize(4)), &out)
	est, err := p.Estimate(ctx, task)
	require.NoError(t, err)
	require.Equal(t, producer.Estimate{
		Chunks:    3,
		TraceSize: 9,
		Digest:    shared.Sum256([]byte("abcdefghi")),
	}, est)
	require.Empty(t, out.msgs, "estimation emits nothing")

	again, err := p.Estimate(ctx, task)
	require.NoError(t, err)
	require.Equal(t, est, again)

	t.Run("empty execution", func(t *testing.T) {
		est, err := producer.New(stage.NewDigest(), nil).Estimate(ctx, shared.ProvingTask{})
		require.NoError(t, err)
		require.Zero(t, est.Chunks)
		require.Zero(t, est.TraceSize)
		require.Equal(t, shared.Sum256(), est.Digest)
	})
	t.Run("chunk limit", func(t *testing.T) {
		p := producer.New(stage.NewDigest(stage.WithChunkSize(1)), nil, producer.WithMaxChunks(2))
		_, err := p.Estimate(ctx, shared.ProvingTask{Program: []byte("abc")})
		require.ErrorIs(t, err, producer.ErrExceededChunkLimit)
	})
	t.Run("emulation error", func(t *testing.T) {
		emulator := mocks.NewMockEmulator(gomock.NewController(t))
		boom := errors.New("boom")
		emulator.EXPECT().Emulate(gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)
		_, err := producer.New(emulator, nil).Estimate(ctx, shared.ProvingTask{})
		require.ErrorIs(t, err, boom)
	})
}
