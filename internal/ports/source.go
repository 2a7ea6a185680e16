package ports

import (
	"context"

	"github.com/dkorunic/rpi-home-sensors/internal/domain"
)

// Source captures one complete reading from every sensor. A failed local
// sensor surfaces as *domain.HardwareError; soft dependencies (the weather
// API) are substituted inside the source and never produce an error.
type Source interface {
	Sample(ctx context.Context) (domain.Reading, error)
}
