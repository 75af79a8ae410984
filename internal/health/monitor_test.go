package health

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	up    atomic.Bool
	calls atomic.Int32
}

func (p *fakeProber) TestConnection(ctx context.Context) bool {
	p.calls.Add(1)
	return p.up.Load()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func newGauge() prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_db_up", Help: "test"})
}

func TestNewMonitor_RejectsZeroInterval(t *testing.T) {
	_, err := NewMonitor(&fakeProber{}, newGauge(), 0, zerolog.Nop())
	require.Error(t, err)
}

func TestProbe_UpdatesGaugeAndLogsTransitions(t *testing.T) {
	prober := &fakeProber{}
	gauge := newGauge()
	buf := &bytes.Buffer{}

	m, err := NewMonitor(prober, gauge, time.Minute, zerolog.New(buf))
	require.NoError(t, err)

	prober.up.Store(true)
	assert.True(t, m.Probe(context.Background()))
	assert.Equal(t, 1.0, gaugeValue(t, gauge))
	assert.True(t, m.Up())

	// Same state again: no new log line.
	m.Probe(context.Background())

	prober.up.Store(false)
	assert.False(t, m.Probe(context.Background()))
	assert.Equal(t, 0.0, gaugeValue(t, gauge))
	assert.False(t, m.Up())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Database reachable")
	assert.Contains(t, lines[1], "Database unreachable")
}

func TestProbe_SkipsWhenContextDone(t *testing.T) {
	prober := &fakeProber{}
	m, err := NewMonitor(prober, newGauge(), time.Minute, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, m.Probe(ctx))
	assert.Zero(t, prober.calls.Load())
}

func TestStart_ProbesImmediately(t *testing.T) {
	prober := &fakeProber{}
	prober.up.Store(true)
	gauge := newGauge()

	m, err := NewMonitor(prober, gauge, time.Hour, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool { return prober.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, m.Stop())
	assert.Equal(t, 1.0, gaugeValue(t, gauge))
}
