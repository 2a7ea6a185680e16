package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkorunic/rpi-home-sensors/internal/domain"
	"github.com/dkorunic/rpi-home-sensors/internal/ports"
)

// RowStore appends readings to a table per calendar month, the
// database-backed stand-in for the original deployment's worksheet per
// month. It is the best-effort secondary sink: the publisher logs its
// errors and moves on, so Append never retries.
type RowStore struct {
	db     *sql.DB
	driver string

	mu      sync.Mutex
	ensured map[string]bool
}

// NewRowStore wraps db. driver selects the placeholder dialect and must
// match the driver used to open db: "sqlite3" or "postgres".
func NewRowStore(db *sql.DB, driver string) *RowStore {
	return &RowStore{db: db, driver: driver, ensured: make(map[string]bool)}
}

// SheetName returns the table holding readings captured at t.
func SheetName(t time.Time) string {
	return "readings_" + t.Format("2006_01")
}

func (s *RowStore) Append(ctx context.Context, r domain.Reading) error {
	table := SheetName(r.At)
	if err := s.ensure(ctx, table); err != nil {
		return err
	}

	q := fmt.Sprintf(
		"INSERT INTO %s (ts, cpu_temp, ambient_temp, pressure, humidity, outdoor_temp) VALUES (%s)",
		table, placeholders(s.driver, 6))
	_, err := s.db.ExecContext(ctx, q,
		r.At.Format(time.RFC3339Nano),
		r.CPUTemp,
		r.AmbientTemp,
		r.Pressure,
		r.Humidity,
		r.OutdoorTemp,
	)
	if err != nil {
		return fmt.Errorf("append row to %s: %w", table, err)
	}
	return nil
}

// ensure creates the month table on first use. Table names come from
// SheetName only, never from input.
func (s *RowStore) ensure(ctx context.Context, table string) error {
	s.mu.Lock()
	done := s.ensured[table]
	s.mu.Unlock()
	if done {
		return nil
	}

	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
ts TEXT NOT NULL,
cpu_temp DOUBLE PRECISION NOT NULL,
ambient_temp DOUBLE PRECISION NOT NULL,
pressure DOUBLE PRECISION NOT NULL,
humidity DOUBLE PRECISION NOT NULL,
outdoor_temp DOUBLE PRECISION NOT NULL
)`, table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create sheet %s: %w", table, err)
	}

	s.mu.Lock()
	s.ensured[table] = true
	s.mu.Unlock()
	return nil
}

func placeholders(driver string, n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		if driver == "postgres" {
			fmt.Fprintf(&b, "$%d", i)
		} else {
			b.WriteString("?")
		}
	}
	return b.String()
}

var _ ports.RowStore = (*RowStore)(nil)
