package render

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/pico-network/prover/logging"
)

const DefaultCheckInterval = 15 * time.Second

var upMetric = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "prover",
	Subsystem: "renderer",
	Name:      "up",
	Help:      "Whether the renderer answered the last liveness check",
})

type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor periodically checks the liveness of the renderer.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	onChange func(up bool)
	up       atomic.Bool
}

type MonitorOption func(*Monitor)

func WithInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.interval = interval
	}
}

// WithStatusHandler registers a callback invoked on every status change, and on the first check.
func WithStatusHandler(f func(up bool)) MonitorOption {
	return func(m *Monitor) {
		m.onChange = f
	}
}

func NewMonitor(pinger Pinger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		pinger:   pinger,
		interval: DefaultCheckInterval,
		onChange: func(bool) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up reports the result of the last check.
func (m *Monitor) Up() bool {
	return m.up.Load()
}

// Run checks the renderer immediately and then every interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("renderer-monitor")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	first := true
	for {
		checkCtx, cancel := context.WithTimeout(ctx, m.interval)
		err := m.pinger.Ping(checkCtx)
		cancel()
		if ctx.Err() != nil {
			return nil
		}

		up := err == nil
		if was := m.up.Swap(up); first || was != up {
			if up {
				logger.Info("renderer is up")
				upMetric.Set(1)
			} else {
				logger.Warn("renderer is down", zap.Error(err))
				upMetric.Set(0)
			}
			m.onChange(up)
		}
		first = false

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
