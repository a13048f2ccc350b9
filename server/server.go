package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/pico-network/prover/logging"
	"github.com/pico-network/prover/pipeline"
	"github.com/pico-network/prover/producer"
	"github.com/pico-network/prover/queue"
	"github.com/pico-network/prover/render"
	"github.com/pico-network/prover/shared"
	"github.com/pico-network/prover/stage"
	"github.com/pico-network/prover/store"
)

type Server struct {
	cfg Config

	backend  *stage.Digest
	pipeline *pipeline.Pipeline
	store    *store.Store
	queue    *queue.Queue
	monitor  *render.Monitor
	health   *health.Server

	rpcListener net.Listener
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := logging.FromContext(ctx)

	addr, err := net.ResolveTCPAddr("tcp", cfg.RawRPCListener)
	if err != nil {
		return nil, err
	}
	rpcListener, err := net.Listen(addr.Network(), addr.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %v", err)
	}

	if _, err := os.Stat(cfg.DataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			rpcListener.Close()
			return nil, err
		}
	}
	db, err := store.Open(cfg.DbDir)
	if err != nil {
		rpcListener.Close()
		return nil, fmt.Errorf("opening proof store: %w", err)
	}

	healthServer := health.NewServer()
	backend := stage.NewDigest(stage.WithChunkSize(cfg.ChunkSize))

	var renderer stage.Renderer = backend
	var monitor *render.Monitor
	if cfg.RendererURL != "" {
		logger.Info("using remote renderer", zap.String("url", cfg.RendererURL))
		client := render.NewClient(cfg.RendererURL, render.WithTimeout(cfg.RendererTimeout))
		renderer = client
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		monitor = render.NewMonitor(
			client,
			render.WithInterval(cfg.RendererCheckInterval),
			render.WithStatusHandler(func(up bool) {
				status := healthpb.HealthCheckResponse_NOT_SERVING
				if up {
					status = healthpb.HealthCheckResponse_SERVING
				}
				healthServer.SetServingStatus("", status)
			}),
		)
	} else {
		logger.Info("rendering proofs locally")
	}

	prover := pipeline.New(backend, renderer, pipeline.WithConfig(cfg.Pipeline))
	q, err := queue.New(prover, db, queue.WithCacheSize(cfg.OutputCacheSize))
	if err != nil {
		rpcListener.Close()
		db.Close()
		return nil, fmt.Errorf("creating proving queue: %w", err)
	}

	return &Server{
		cfg:         cfg,
		backend:     backend,
		pipeline:    prover,
		store:       db,
		queue:       q,
		monitor:     monitor,
		health:      healthServer,
		rpcListener: rpcListener,
	}, nil
}

func (s *Server) Close() error {
	var result *multierror.Error
	if err := s.rpcListener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		result = multierror.Append(result, fmt.Errorf("closing RPC listener: %w", err))
	}
	if err := s.store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing proof store: %w", err))
	}
	return result.ErrorOrNil()
}

// GrpcAddr returns the address that server is listening on for GRPC.
func (s *Server) GrpcAddr() net.Addr {
	return s.rpcListener.Addr()
}

// Submit enqueues proving of a program execution and returns the key to look its proof up with.
func (s *Server) Submit(ctx context.Context, program, inputs []byte) (shared.TaskKey, error) {
	pk, vk := s.backend.Setup(program)
	task := shared.ProvingTask{
		Key: shared.TaskKey{
			AppID:  shared.AppIDFromVerifyingKey(vk),
			TaskID: uuid.NewString(),
		},
		Program:      program,
		ProvingKey:   pk,
		VerifyingKey: vk,
		Inputs:       inputs,
	}
	if err := s.queue.Submit(ctx, task); err != nil {
		return shared.TaskKey{}, fmt.Errorf("submitting task: %w", err)
	}
	return task.Key, nil
}

// Estimate emulates a program execution and reports its size without proving it.
func (s *Server) Estimate(ctx context.Context, program, inputs []byte) (producer.Estimate, error) {
	pk, vk := s.backend.Setup(program)
	return s.pipeline.Estimate(ctx, shared.ProvingTask{
		Key:          shared.TaskKey{AppID: shared.AppIDFromVerifyingKey(vk), TaskID: "estimate"},
		Program:      program,
		ProvingKey:   pk,
		VerifyingKey: vk,
		Inputs:       inputs,
	})
}

func (s *Server) Lookup(ctx context.Context, key shared.TaskKey) ([]byte, error) {
	return s.queue.Lookup(ctx, key)
}

// Start runs the proving queue and the service endpoints until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	serverGroup, ctx := errgroup.WithContext(ctx)

	logger := logging.FromContext(ctx)

	logger.Info("starting proving queue")
	serverGroup.Go(func() error {
		return s.queue.Run(ctx)
	})

	if s.monitor != nil {
		serverGroup.Go(func() error {
			return s.monitor.Run(ctx)
		})
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: time.Minute * 120,
			Time:              time.Minute,
			Timeout:           time.Minute * 3,
		}),
	)
	healthpb.RegisterHealthServer(grpcServer, s.health)
	reflection.Register(grpcServer)

	serverGroup.Go(func() error {
		logger.Sugar().Infof("GRPC server listening on %s", s.rpcListener.Addr())
		return grpcServer.Serve(s.rpcListener)
	})

	var metricsServer *http.Server
	if s.cfg.MetricsPort != nil {
		metricsListener, err := net.Listen("tcp", fmt.Sprintf(":%d", *s.cfg.MetricsPort))
		if err != nil {
			stop()
			grpcServer.Stop()
			_ = serverGroup.Wait()
			return fmt.Errorf("failed to listen for metrics: %w", err)
		}
		metricsServer = &http.Server{Handler: promhttp.Handler(), ReadHeaderTimeout: time.Second * 5}
		serverGroup.Go(func() error {
			logger.Sugar().Infof("metrics server listening on %s", metricsListener.Addr())
			err := metricsServer.Serve(metricsListener)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	// Wait for the server to shut down gracefully
	<-ctx.Done()
	s.health.Shutdown()
	grpcServer.GracefulStop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Sugar().Errorf("failed to shutdown metrics server: %s", err)
		}
	}
	if err := serverGroup.Wait(); err != nil {
		logger.Sugar().Errorf("error when waiting to shutdown servers: %s", err)
	}
	return nil
}
