package ports

import (
	"context"
	"time"

	"github.com/dkorunic/rpi-home-sensors/internal/domain"
)

// ChartSink opens connections to the streaming-chart service. Connections
// are single-use: the publisher abandons one after the first write error
// and dials a fresh one.
type ChartSink interface {
	Connect(ctx context.Context) (ChartConn, error)
}

// ChartConn is one live chart connection. Append pushes a single point on
// the named series stream.
type ChartConn interface {
	Append(series string, at time.Time, value float64) error
	Close() error
}

// RowStore appends readings as rows to a period-named sheet. It is a
// best-effort secondary sink: callers log errors and move on.
type RowStore interface {
	Append(ctx context.Context, r domain.Reading) error
}

// Series binds one chart stream to the reading field it plots. The
// publisher appends one point per series for every reading; the chart
// sink declares the set when it connects.
type Series struct {
	ID    string
	Label string
	Axis  string
	Value func(r domain.Reading) float64
}
