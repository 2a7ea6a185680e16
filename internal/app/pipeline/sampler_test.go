package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dkorunic/rpi-home-sensors/internal/adapters/queue"
	"github.com/dkorunic/rpi-home-sensors/internal/domain"
)

func TestSamplerEnqueuesEveryReading(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{
		readings: []domain.Reading{reading(1), reading(2), reading(3)},
		done:     cancel,
	}
	q := queue.NewMemQueue(10)
	met := testMetrics()

	s := &Sampler{
		Source:  src,
		Queue:   q,
		Period:  100 * time.Millisecond,
		Metrics: met,
		Log:     discardLogger(),
	}
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := q.Len(); got != 3 {
		t.Fatalf("expected 3 queued readings, got %d", got)
	}
	for want := 1; want <= 3; want++ {
		r, ok := q.Dequeue()
		if !ok || r.CPUTemp != float64(want) {
			t.Fatalf("expected reading %d, got %+v ok=%v", want, r, ok)
		}
	}
	if got := testutil.ToFloat64(met.Samples); got != 3 {
		t.Fatalf("expected 3 samples counted, got %v", got)
	}
	if got := testutil.ToFloat64(met.QueueEvicted); got != 0 {
		t.Fatalf("expected no evictions, got %v", got)
	}
}

func TestSamplerEvictsOldestWhenQueueFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{
		readings: []domain.Reading{reading(1), reading(2), reading(3), reading(4), reading(5)},
		done:     cancel,
	}
	q := queue.NewMemQueue(2)
	met := testMetrics()
	led := &countBlinker{}

	s := &Sampler{
		Source:  src,
		Queue:   q,
		LED:     led,
		Period:  50 * time.Millisecond,
		Metrics: met,
		Log:     discardLogger(),
	}
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := testutil.ToFloat64(met.QueueEvicted); got != 3 {
		t.Fatalf("expected 3 evictions, got %v", got)
	}
	for want := 4; want <= 5; want++ {
		r, ok := q.Dequeue()
		if !ok || r.CPUTemp != float64(want) {
			t.Fatalf("expected surviving reading %d, got %+v ok=%v", want, r, ok)
		}
	}
	if led.count() != 5 {
		t.Fatalf("expected 5 heartbeat blinks, got %d", led.count())
	}
}

func TestSamplerHardwareFaultIsFatal(t *testing.T) {
	src := &faultySource{
		failOn: 1,
		err:    &domain.HardwareError{Component: "dht22", Err: errors.New("checksum mismatch")},
	}
	q := queue.NewMemQueue(4)

	s := &Sampler{
		Source:  src,
		Queue:   q,
		Period:  time.Second,
		Metrics: testMetrics(),
		Log:     discardLogger(),
	}
	err := s.Run(context.Background())
	if err == nil {
		t.Fatalf("expected a fatal error")
	}
	var hw *domain.HardwareError
	if !errors.As(err, &hw) || hw.Component != "dht22" {
		t.Fatalf("expected dht22 hardware error, got %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("expected no partial readings enqueued, got %d", q.Len())
	}
}

func TestSamplerStopsBetweenTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{
		readings: []domain.Reading{reading(1)},
		done:     cancel,
	}

	s := &Sampler{
		Source:  src,
		Queue:   queue.NewMemQueue(4),
		Period:  time.Hour,
		Metrics: testMetrics(),
		Log:     discardLogger(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected nil on cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sampler did not stop after cancellation")
	}
}
