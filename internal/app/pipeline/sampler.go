// Package pipeline contains the two loops that move readings from the
// local sensors to the remote sinks: a fixed-period sampler feeding a
// bounded queue, and a publisher draining it toward the chart service.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dkorunic/rpi-home-sensors/internal/adapters/observability"
	"github.com/dkorunic/rpi-home-sensors/internal/domain"
	"github.com/dkorunic/rpi-home-sensors/internal/ports"
)

// ledPulse is how long the status LED stays lit after a sample.
const ledPulse = 100 * time.Millisecond

// Blinker pulses a status indicator after each captured sample.
// *statusled.LED satisfies it; nil disables the heartbeat.
type Blinker interface {
	Blink(d time.Duration)
}

// Sampler captures one reading per period and hands it to the queue. It
// never blocks on the publisher: enqueueing evicts instead of waiting.
type Sampler struct {
	Source  ports.Source
	Queue   ports.Queue
	LED     Blinker
	Period  time.Duration
	Metrics *observability.Metrics
	Log     *slog.Logger
}

// Run samples once immediately and then on every period tick until ctx
// is cancelled, which returns nil. A *domain.HardwareError from the
// source is fatal: the loop logs it and returns it so the daemon can
// exit non-zero. Partial readings are never enqueued.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()

	for {
		r, err := s.Source.Sample(ctx)
		if err != nil {
			var hw *domain.HardwareError
			if errors.As(err, &hw) {
				s.Log.Error("sensor fault", "component", hw.Component, "error", hw.Err)
			} else {
				s.Log.Error("sample failed", "error", err)
			}
			return err
		}

		s.Metrics.Samples.Inc()
		if evicted := s.Queue.Enqueue(r); evicted {
			s.Metrics.QueueEvicted.Inc()
			s.Log.Warn("queue full, evicted oldest reading", "len", s.Queue.Len())
		}
		s.Log.Debug("sampled",
			"cpu", r.CPUTemp,
			"ambient", r.AmbientTemp,
			"pressure", r.Pressure,
			"humidity", r.Humidity,
			"outdoor", r.OutdoorTemp)
		if s.LED != nil {
			s.LED.Blink(ledPulse)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
