// Package health runs the periodic database probe behind the expenses_db_up
// gauge.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Prober reports whether the store is reachable. *database.Scope satisfies it.
type Prober interface {
	TestConnection(ctx context.Context) bool
}

// Monitor probes the store on a fixed interval.
type Monitor struct {
	prober   Prober
	gauge    prometheus.Gauge
	interval time.Duration
	log      zerolog.Logger

	scheduler gocron.Scheduler

	mu    sync.Mutex
	known bool
	up    bool
}

// NewMonitor creates a Monitor. It does not probe until Start is called.
func NewMonitor(prober Prober, gauge prometheus.Gauge, interval time.Duration, log zerolog.Logger) (*Monitor, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("NewMonitor: interval must be positive, got %s", interval)
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("NewMonitor: create scheduler: %w", err)
	}

	return &Monitor{
		prober:    prober,
		gauge:     gauge,
		interval:  interval,
		log:       log.With().Str("component", "health").Logger(),
		scheduler: scheduler,
	}, nil
}

// Start schedules the probe, running it once immediately. Probes stop when
// ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() { m.Probe(ctx) }),
		gocron.WithName("db_probe"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("Start: schedule probe: %w", err)
	}

	m.scheduler.Start()
	m.log.Info().Dur("interval", m.interval).Msg("Database probe scheduled")
	return nil
}

// Stop shuts the scheduler down and waits for a running probe.
func (m *Monitor) Stop() error {
	if err := m.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("Stop: %w", err)
	}
	return nil
}

// Probe runs a single check, updates the gauge and logs state changes.
func (m *Monitor) Probe(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	up := m.prober.TestConnection(ctx)
	if up {
		m.gauge.Set(1)
	} else {
		m.gauge.Set(0)
	}

	m.mu.Lock()
	changed := !m.known || m.up != up
	m.known = true
	m.up = up
	m.mu.Unlock()

	if changed {
		if up {
			m.log.Info().Msg("Database reachable")
		} else {
			m.log.Error().Msg("Database unreachable")
		}
	}
	return up
}

// Up returns the result of the last probe. It is false before the first one.
func (m *Monitor) Up() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.up
}
