package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dkorunic/rpi-home-sensors/internal/domain"
	"github.com/dkorunic/rpi-home-sensors/internal/ports"
)

const chartHandshakeTimeout = 10 * time.Second

// Wire frames exchanged with the chart service.
type openFrame struct {
	Type      string       `json:"type"`
	Token     string       `json:"token"`
	Title     string       `json:"title"`
	MaxPoints int          `json:"max_points"`
	Series    []seriesDecl `json:"series"`
}

type seriesDecl struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Axis  string `json:"axis"`
}

type ackFrame struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

type pointFrame struct {
	Type   string  `json:"type"`
	Series string  `json:"series"`
	X      string  `json:"x"`
	Y      float64 `json:"y"`
}

// ChartStream dials the streaming-chart service over websocket. Each
// Connect declares the chart (title, rolling window, series set) and
// returns a single-use connection; the publisher discards it after the
// first write error and dials a fresh one.
type ChartStream struct {
	url          string
	apiKey       string
	title        string
	maxPoints    int
	writeTimeout time.Duration
	series       []ports.Series
}

func NewChartStream(url, apiKey, title string, maxPoints int, writeTimeout time.Duration, series []ports.Series) *ChartStream {
	return &ChartStream{
		url:          url,
		apiKey:       apiKey,
		title:        title,
		maxPoints:    maxPoints,
		writeTimeout: writeTimeout,
		series:       series,
	}
}

func (c *ChartStream) Connect(ctx context.Context) (ports.ChartConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: chartHandshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("dial chart service: %w", err)
	}

	decl := openFrame{
		Type:      "open",
		Token:     c.apiKey,
		Title:     c.title,
		MaxPoints: c.maxPoints,
	}
	for _, s := range c.series {
		decl.Series = append(decl.Series, seriesDecl{ID: s.ID, Label: s.Label, Axis: s.Axis})
	}

	ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := ws.WriteJSON(decl); err != nil {
		ws.Close()
		return nil, fmt.Errorf("declare chart: %w", err)
	}

	ws.SetReadDeadline(time.Now().Add(c.writeTimeout))
	var ack ackFrame
	if err := ws.ReadJSON(&ack); err != nil {
		ws.Close()
		return nil, fmt.Errorf("chart ack: %w", err)
	}
	if ack.Type != "ok" {
		ws.Close()
		return nil, fmt.Errorf("chart service rejected stream: %s", ack.Error)
	}

	return &chartConn{ws: ws, writeTimeout: c.writeTimeout}, nil
}

type chartConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	once         sync.Once
	closeErr     error
}

func (c *chartConn) Append(series string, at time.Time, value float64) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	frame := pointFrame{
		Type:   "point",
		Series: series,
		X:      at.Format(domain.StampLayout),
		Y:      value,
	}
	if err := c.ws.WriteJSON(frame); err != nil {
		return fmt.Errorf("append point: %w", err)
	}
	return nil
}

// Close sends a close frame best-effort and tears down the transport.
// Safe to call more than once.
func (c *chartConn) Close() error {
	c.once.Do(func() {
		c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

var _ ports.ChartSink = (*ChartStream)(nil)
