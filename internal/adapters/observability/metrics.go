package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the daemon exports. Logging
// goes through slog; this type is counters only.
type Metrics struct {
	Samples           prometheus.Counter
	QueueEvicted      prometheus.Counter
	ReadingsDelivered prometheus.Counter
	PointsAppended    prometheus.Counter
	Requeues          prometheus.Counter
	ChartConnects     prometheus.Counter
	ChartErrors       prometheus.Counter
	SheetErrors       prometheus.Counter
	WeatherFallbacks  prometheus.Counter
	QueueLen          prometheus.Gauge
	DeliverySeconds   prometheus.Histogram
}

// NewMetrics builds and registers the collectors against reg, so tests
// can pass a private registry instead of the process-global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensors_samples_total",
			Help: "Readings captured by the sampling loop.",
		}),
		QueueEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensors_queue_evicted_total",
			Help: "Readings dropped because the bounded queue was full.",
		}),
		ReadingsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensors_readings_delivered_total",
			Help: "Readings fully appended to the chart service.",
		}),
		PointsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensors_points_appended_total",
			Help: "Individual series points accepted by the chart service.",
		}),
		Requeues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensors_requeues_total",
			Help: "Readings pushed back to the queue front after a chart failure.",
		}),
		ChartConnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensors_chart_connects_total",
			Help: "Successful chart service connections.",
		}),
		ChartErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensors_chart_errors_total",
			Help: "Chart connect or write failures.",
		}),
		SheetErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensors_sheet_errors_total",
			Help: "Best-effort row store failures (logged and swallowed).",
		}),
		WeatherFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensors_weather_fallbacks_total",
			Help: "Samples that used the fallback outdoor temperature.",
		}),
		QueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensors_queue_len",
			Help: "Readings currently buffered in the bounded queue.",
		}),
		DeliverySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sensors_delivery_seconds",
			Help:    "Time from dequeue to full chart delivery of one reading.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	reg.MustRegister(
		m.Samples,
		m.QueueEvicted,
		m.ReadingsDelivered,
		m.PointsAppended,
		m.Requeues,
		m.ChartConnects,
		m.ChartErrors,
		m.SheetErrors,
		m.WeatherFallbacks,
		m.QueueLen,
		m.DeliverySeconds,
	)
	return m
}
