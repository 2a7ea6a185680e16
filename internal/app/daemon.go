// Package app assembles the daemon: hardware adapters, queue, sinks,
// metrics, and the two pipeline loops.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"periph.io/x/host/v3"

	"github.com/dkorunic/rpi-home-sensors/internal/adapters/observability"
	"github.com/dkorunic/rpi-home-sensors/internal/adapters/queue"
	"github.com/dkorunic/rpi-home-sensors/internal/adapters/sensors"
	"github.com/dkorunic/rpi-home-sensors/internal/adapters/sink"
	"github.com/dkorunic/rpi-home-sensors/internal/adapters/statusled"
	"github.com/dkorunic/rpi-home-sensors/internal/adapters/weather"
	"github.com/dkorunic/rpi-home-sensors/internal/app/config"
	"github.com/dkorunic/rpi-home-sensors/internal/app/pipeline"
	"github.com/dkorunic/rpi-home-sensors/internal/backoff"
	"github.com/dkorunic/rpi-home-sensors/internal/domain"
	"github.com/dkorunic/rpi-home-sensors/internal/ports"
)

// Run opens the hardware, wires the pipeline, and blocks until ctx is
// cancelled or the sampler hits a hardware fault. A signal-initiated
// shutdown returns nil; a fault returns the sensor error so the process
// can exit non-zero. Readings still queued at shutdown are dropped.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}

	bmp, err := sensors.OpenBarometer(cfg.Sample.BMP.Bus, cfg.Sample.BMP.Addr, cfg.Sample.BMP.Mode)
	if err != nil {
		return fmt.Errorf("open barometer: %w", err)
	}
	defer bmp.Close()

	dht, err := sensors.OpenDHT(cfg.Sample.DHT.Pin, cfg.Sample.DHT.Retries, cfg.Sample.DHT.RetryDelay.Std())
	if err != nil {
		return fmt.Errorf("open dht22: %w", err)
	}

	led, err := statusled.Open(cfg.StatusLED.Pin)
	if err != nil {
		return err
	}
	defer led.Close()

	met := observability.NewMetrics(prometheus.DefaultRegisterer)

	var store ports.RowStore
	if cfg.Sheet.Driver != "" {
		db, err := sql.Open(cfg.Sheet.Driver, cfg.Sheet.DSN)
		if err != nil {
			return fmt.Errorf("open sheet store: %w", err)
		}
		defer db.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		pingCancel()
		if err != nil {
			return fmt.Errorf("ping sheet store: %w", err)
		}
		store = sink.NewRowStore(db, cfg.Sheet.Driver)
		log.Info("sheet store ready", "driver", cfg.Sheet.Driver)
	}

	wcli := weather.New(weather.Options{
		URL:       cfg.Weather.URL,
		FallbackC: cfg.Weather.FallbackC,
		Refresh:   cfg.Weather.Refresh.Std(),
		Timeout:   cfg.Weather.Timeout.Std(),
	}, backoff.New(cfg.Backoff.Floor.Std(), cfg.Backoff.Ceiling.Std()), met.WeatherFallbacks, log)

	src := sensors.NewSource(sensors.NewCPUThermal(cfg.Sample.CPUThermalPath), bmp, dht, wcli)
	q := queue.NewMemQueue(cfg.Queue.Capacity)
	series := chartSeries(cfg.Chart.Streams)
	chart := sink.NewChartStream(cfg.Chart.URL, cfg.Chart.APIKey, cfg.Chart.Title,
		cfg.Chart.MaxPoints, cfg.Chart.WriteTimeout.Std(), series)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		srv = serveMetrics(cfg.Metrics.Addr, log)
	}
	go watchQueueLen(runCtx, q, met)

	smp := &pipeline.Sampler{
		Source:  src,
		Queue:   q,
		LED:     led,
		Period:  cfg.Sample.Period.Std(),
		Metrics: met,
		Log:     log,
	}
	pub := &pipeline.Publisher{
		Queue:          q,
		Chart:          chart,
		Sheet:          store,
		Series:         series,
		ConnectBackoff: backoff.New(cfg.Backoff.Floor.Std(), cfg.Backoff.Ceiling.Std()),
		WriteBackoff:   backoff.New(cfg.Backoff.Floor.Std(), cfg.Backoff.Ceiling.Std()),
		Metrics:        met,
		Log:            log,
	}

	samplerCh := make(chan error, 1)
	pubCh := make(chan error, 1)
	go func() { samplerCh <- smp.Run(runCtx) }()
	go func() { pubCh <- pub.Run(runCtx) }()

	log.Info("daemon running",
		"period", cfg.Sample.Period.Std(),
		"queue_capacity", q.Cap(),
		"chart", cfg.Chart.URL)

	fault := awaitShutdown(ctx, cancel, q, samplerCh, pubCh, log)

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server shutdown", "error", err)
		}
		shutdownCancel()
	}

	return fault
}

// awaitShutdown blocks until ctx is cancelled or the sampler reports a
// fault, then stops both loops and waits for them. A fault is returned
// even when it races the shutdown signal, so a dead sensor never turns
// into a clean exit. The publisher wakes from Dequeue on queue close and
// from backoff sleeps on cancel; an in-flight sample finishes before the
// sampler notices either.
func awaitShutdown(ctx context.Context, cancel context.CancelFunc, q ports.Queue, samplerCh, pubCh <-chan error, log *slog.Logger) error {
	var fault error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case fault = <-samplerCh:
		samplerCh = nil
	}

	cancel()
	q.Close()
	if samplerCh != nil {
		if err := <-samplerCh; err != nil {
			fault = err
		}
	}
	<-pubCh
	return fault
}

// chartSeries fixes the order points are appended in for every reading.
// Temperatures and humidity share the left axis; pressure gets the right.
func chartSeries(s config.StreamsConfig) []ports.Series {
	return []ports.Series{
		{ID: s.CPU, Label: "CPU [C]", Axis: "left",
			Value: func(r domain.Reading) float64 { return r.CPUTemp }},
		{ID: s.Ambient, Label: "Ambient [C]", Axis: "left",
			Value: func(r domain.Reading) float64 { return r.AmbientTemp }},
		{ID: s.Humidity, Label: "Humidity [%]", Axis: "left",
			Value: func(r domain.Reading) float64 { return r.Humidity }},
		{ID: s.Pressure, Label: "Pressure [hPa]", Axis: "right",
			Value: func(r domain.Reading) float64 { return r.Pressure }},
		{ID: s.Outdoor, Label: "Outdoor [C]", Axis: "left",
			Value: func(r domain.Reading) float64 { return r.OutdoorTemp }},
	}
}

func serveMetrics(addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server exited", "error", err)
		}
	}()
	return srv
}

func watchQueueLen(ctx context.Context, q ports.Queue, met *observability.Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			met.QueueLen.Set(float64(q.Len()))
		}
	}
}
