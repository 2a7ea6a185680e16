package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkorunic/rpi-home-sensors/internal/adapters/observability"
	"github.com/dkorunic/rpi-home-sensors/internal/backoff"
	"github.com/dkorunic/rpi-home-sensors/internal/domain"
	"github.com/dkorunic/rpi-home-sensors/internal/ports"
)

// Publisher drains the queue into the chart service and, best effort,
// the row store. It owns the chart connection lifecycle: connect with
// backoff, deliver until a write fails, requeue the in-flight reading,
// reconnect. Only queue close or ctx cancellation stops it; sink
// failures never do.
type Publisher struct {
	Queue  ports.Queue
	Chart  ports.ChartSink
	Sheet  ports.RowStore // nil when no sheet store is configured
	Series []ports.Series

	ConnectBackoff *backoff.Policy
	WriteBackoff   *backoff.Policy

	Metrics *observability.Metrics
	Log     *slog.Logger
}

// Run loops connect → deliver until shutdown. It returns nil on queue
// close and on ctx cancellation; undelivered readings are lost at that
// point, which is the shutdown contract.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		conn, ok := p.awaitConn(ctx)
		if !ok {
			return nil
		}
		if done := p.deliver(ctx, conn); done {
			return nil
		}
	}
}

// awaitConn dials the chart service until a connection is established,
// sleeping the connect backoff between attempts. ok is false only when
// ctx was cancelled.
func (p *Publisher) awaitConn(ctx context.Context) (ports.ChartConn, bool) {
	for {
		if ctx.Err() != nil {
			return nil, false
		}
		p.Log.Info("connecting to chart service")
		conn, err := p.Chart.Connect(ctx)
		if err != nil {
			p.Metrics.ChartErrors.Inc()
			delay := p.ConnectBackoff.Next()
			p.Log.Warn("chart connect failed", "error", err, "retry_in", delay)
			if !sleepCtx(ctx, delay) {
				return nil, false
			}
			continue
		}
		p.Metrics.ChartConnects.Inc()
		p.ConnectBackoff.Reset()
		p.Log.Info("connected to chart service")
		return conn, true
	}
}

// deliver pushes readings over conn until the queue closes (done=true),
// ctx is cancelled (done=true), or a write fails (done=false, caller
// reconnects). The failed reading goes back to the queue front so its
// order is kept.
func (p *Publisher) deliver(ctx context.Context, conn ports.ChartConn) (done bool) {
	for {
		r, ok := p.Queue.Dequeue()
		if !ok {
			_ = conn.Close()
			return true
		}

		start := time.Now()
		if err := p.appendAll(conn, r); err != nil {
			p.Metrics.ChartErrors.Inc()
			p.Metrics.Requeues.Inc()
			p.Log.Warn("chart write failed, requeueing reading", "at", r.Stamp(), "error", err)
			if evicted := p.Queue.Requeue(r); evicted {
				p.Metrics.QueueEvicted.Inc()
				p.Log.Warn("queue full, dropped in-flight reading", "at", r.Stamp())
			}
			_ = conn.Close()
			delay := p.WriteBackoff.Next()
			p.Log.Info("reconnecting to chart service", "retry_in", delay)
			return !sleepCtx(ctx, delay)
		}

		p.WriteBackoff.Reset()
		p.Metrics.ReadingsDelivered.Inc()
		p.Metrics.DeliverySeconds.Observe(time.Since(start).Seconds())
		p.Log.Debug("reading delivered", "at", r.Stamp())

		p.appendRow(ctx, r)
	}
}

// appendAll writes one point per configured series. A reading counts as
// delivered only when every series accepted its point; on error the
// whole reading is retried later, so some points may be sent twice.
func (p *Publisher) appendAll(conn ports.ChartConn, r domain.Reading) error {
	for _, s := range p.Series {
		if err := conn.Append(s.ID, r.At, s.Value(r)); err != nil {
			return fmt.Errorf("series %s: %w", s.ID, err)
		}
		p.Metrics.PointsAppended.Inc()
	}
	return nil
}

// appendRow hands the reading to the row store when one is configured.
// Failures are logged and counted, never retried.
func (p *Publisher) appendRow(ctx context.Context, r domain.Reading) {
	if p.Sheet == nil {
		return
	}
	if err := p.Sheet.Append(ctx, r); err != nil {
		p.Metrics.SheetErrors.Inc()
		p.Log.Warn("sheet append failed", "at", r.Stamp(), "error", err)
	}
}

// sleepCtx waits for d and reports whether the wait completed before ctx
// was cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
