package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dkorunic/rpi-home-sensors/internal/adapters/observability"
	"github.com/dkorunic/rpi-home-sensors/internal/domain"
	"github.com/dkorunic/rpi-home-sensors/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

// reading returns a distinguishable fixture; CPUTemp carries the ordinal.
func reading(n int) domain.Reading {
	return domain.Reading{
		At:          time.Date(2026, 8, 25, 12, 0, n, 0, time.UTC),
		CPUTemp:     float64(n),
		AmbientTemp: 20 + float64(n),
	}
}

func testSeries() []ports.Series {
	return []ports.Series{
		{ID: "cpu", Value: func(r domain.Reading) float64 { return r.CPUTemp }},
		{ID: "ambient", Value: func(r domain.Reading) float64 { return r.AmbientTemp }},
	}
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

type countBlinker struct {
	mu sync.Mutex
	n  int
}

func (b *countBlinker) Blink(time.Duration) {
	b.mu.Lock()
	b.n++
	b.mu.Unlock()
}

func (b *countBlinker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// fakeSource replays scripted readings and calls done after the last one.
type fakeSource struct {
	mu       sync.Mutex
	readings []domain.Reading
	next     int
	done     func()
}

func (f *fakeSource) Sample(context.Context) (domain.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= len(f.readings) {
		return domain.Reading{}, errors.New("script exhausted")
	}
	r := f.readings[f.next]
	f.next++
	if f.next == len(f.readings) && f.done != nil {
		f.done()
	}
	return r, nil
}

// faultySource fails on the given call number (1-based).
type faultySource struct {
	calls  int
	failOn int
	err    error
}

func (f *faultySource) Sample(context.Context) (domain.Reading, error) {
	f.calls++
	if f.calls >= f.failOn {
		return domain.Reading{}, f.err
	}
	return domain.Reading{CPUTemp: float64(f.calls)}, nil
}

// fakeChart hands out fakeConns, failing the first failConnects dials.
type fakeChart struct {
	mu           sync.Mutex
	failConnects int
	dials        int
	conns        []*fakeConn
	// okAppends and failAppends are copied onto the next conn handed
	// out, then cleared; later conns behave cleanly.
	okAppends   int
	failAppends int
}

func (f *fakeChart) Connect(context.Context) (ports.ChartConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.failConnects > 0 {
		f.failConnects--
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{okAppends: f.okAppends, failAppends: f.failAppends}
	f.okAppends, f.failAppends = 0, 0
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeChart) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeChart) connCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeChart) lastConn() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

type chartPoint struct {
	series string
	at     time.Time
	value  float64
}

// fakeConn records appended points. The first okAppends calls succeed,
// the next failAppends calls fail, and everything after succeeds, so a
// test can break a connection mid-reading.
type fakeConn struct {
	mu          sync.Mutex
	okAppends   int
	failAppends int
	points      []chartPoint
	closed      bool
}

func (c *fakeConn) Append(series string, at time.Time, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.okAppends > 0 {
		c.okAppends--
	} else if c.failAppends > 0 {
		c.failAppends--
		return errors.New("broken pipe")
	}
	c.points = append(c.points, chartPoint{series: series, at: at, value: value})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) pointCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.points)
}

func (c *fakeConn) snapshot() []chartPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chartPoint, len(c.points))
	copy(out, c.points)
	return out
}

// fakeStore records appends and optionally fails every one of them.
type fakeStore struct {
	mu   sync.Mutex
	rows []domain.Reading
	err  error
}

func (f *fakeStore) Append(_ context.Context, r domain.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, r)
	return f.err
}

func (f *fakeStore) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}
