package render_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/render"
	"github.com/pico-network/prover/shared"
)

func hexWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("0x%x", i+1)
	}
	return strings.Join(words, ", ")
}

func TestDecodeProof(t *testing.T) {
	t.Run("quoted values", func(t *testing.T) {
		out, err := render.DecodeProof(`"` + hexWords(10) + `"` + "\n")
		require.NoError(t, err)
		require.Len(t, out, 320)
		for i := 0; i < 10; i++ {
			word := out[i*32 : (i+1)*32]
			require.Equal(t, byte(i+1), word[31])
			require.Equal(t, make([]byte, 31), word[:31])
		}
	})
	t.Run("max uint256", func(t *testing.T) {
		words := strings.Split(hexWords(10), ", ")
		words[0] = "0x" + strings.Repeat("ff", 32)
		out, err := render.DecodeProof(strings.Join(words, ","))
		require.NoError(t, err)
		require.Equal(t, []byte(strings.Repeat("\xff", 32)), out[:32])
	})
	t.Run("wrong number of values", func(t *testing.T) {
		_, err := render.DecodeProof(hexWords(9))
		require.ErrorIs(t, err, render.ErrMalformedProof)
	})
	t.Run("not hex", func(t *testing.T) {
		words := strings.Split(hexWords(10), ", ")
		words[3] = "0xzz"
		_, err := render.DecodeProof(strings.Join(words, ","))
		require.ErrorIs(t, err, render.ErrMalformedProof)
	})
	t.Run("overflow", func(t *testing.T) {
		words := strings.Split(hexWords(10), ", ")
		words[9] = "0x1" + strings.Repeat("00", 32)
		_, err := render.DecodeProof(strings.Join(words, ","))
		require.ErrorIs(t, err, render.ErrMalformedProof)
	})
}

type renderer struct {
	mu       sync.Mutex
	received []shared.IndexedProof
	status   int
	healthy  bool
}

func (r *renderer) handle(ctx *fasthttp.RequestCtx) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch string(ctx.Path()) {
	case "/prove":
		if !ctx.IsPost() {
			ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
			return
		}
		proof, err := shared.DecodeIndexedProof(ctx.PostBody())
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		r.received = append(r.received, proof)
		if r.status != 0 {
			ctx.SetStatusCode(r.status)
			return
		}
		ctx.SetBodyString(`"` + hexWords(10) + `"`)
	case "/health":
		if !r.healthy {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		}
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (r *renderer) proofs() []shared.IndexedProof {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shared.IndexedProof(nil), r.received...)
}

func serve(t *testing.T, r *renderer) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &fasthttp.Server{Handler: r.handle}
	go srv.Serve(ln)
	t.Cleanup(func() { _ = srv.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestClientRender(t *testing.T) {
	r := &renderer{healthy: true}
	client := render.NewClient(serve(t, r)+"/", render.WithTimeout(5*time.Second))

	embed := shared.NewIndexedProof([]byte("embed proof"), 0, 7)
	out, err := client.Render(context.Background(), embed)
	require.NoError(t, err)
	require.Len(t, out, 320)
	require.Equal(t, []shared.IndexedProof{embed}, r.proofs())

	require.NoError(t, client.Ping(context.Background()))
}

func TestClientRenderFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		r := &renderer{status: fasthttp.StatusInternalServerError}
		client := render.NewClient(serve(t, r))
		_, err := client.Render(context.Background(), shared.NewIndexedProof([]byte("embed"), 0, 0))
		require.ErrorContains(t, err, "unexpected status 500")
		require.Error(t, client.Ping(context.Background()))
	})
	t.Run("unreachable", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		client := render.NewClient("http://"+addr, render.WithTimeout(time.Second))
		_, err = client.Render(context.Background(), shared.NewIndexedProof([]byte("embed"), 0, 0))
		require.Error(t, err)
	})
}

type pinger struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *pinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *pinger) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func TestMonitor(t *testing.T) {
	ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), zaptest.NewLogger(t)))
	defer cancel()

	p := &pinger{}
	changes := make(chan bool, 10)
	m := render.NewMonitor(p,
		render.WithInterval(10*time.Millisecond),
		render.WithStatusHandler(func(up bool) { changes <- up }),
	)

	var eg errgroup.Group
	eg.Go(func() error { return m.Run(ctx) })

	require.True(t, <-changes)
	require.Eventually(t, m.Up, time.Second, 10*time.Millisecond)

	p.set(errors.New("down"))
	require.False(t, <-changes)
	require.False(t, m.Up())

	p.set(nil)
	require.True(t, <-changes)

	cancel()
	require.NoError(t, eg.Wait())
}

func TestMonitorReportsInitialDownState(t *testing.T) {
	ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), zaptest.NewLogger(t)))
	defer cancel()

	p := &pinger{err: errors.New("down")}
	changes := make(chan bool, 10)
	m := render.NewMonitor(p,
		render.WithInterval(time.Hour),
		render.WithStatusHandler(func(up bool) { changes <- up }),
	)
	var eg errgroup.Group
	eg.Go(func() error { return m.Run(ctx) })

	require.False(t, <-changes)
	cancel()
	require.NoError(t, eg.Wait())
}
