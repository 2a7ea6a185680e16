package sensors

import (
	"context"
	"time"

	"github.com/dkorunic/rpi-home-sensors/internal/domain"
	"github.com/dkorunic/rpi-home-sensors/internal/ports"
)

// CPUReader supplies the CPU temperature in degrees Celsius.
type CPUReader interface {
	Read() (float64, error)
}

// EnvReader supplies ambient temperature (C) and pressure (hPa).
type EnvReader interface {
	Read() (temp, pressure float64, err error)
}

// HumidityReader supplies relative humidity in percent.
type HumidityReader interface {
	Read() (float64, error)
}

// OutdoorReader supplies the outdoor temperature; the bool reports
// whether the fallback constant was substituted.
type OutdoorReader interface {
	Current(ctx context.Context) (float64, bool)
}

// Source assembles one complete reading per call. Local sensor failures
// are fatal and surface as *domain.HardwareError; the outdoor reader is
// a soft dependency and never fails.
type Source struct {
	cpu     CPUReader
	env     EnvReader
	hum     HumidityReader
	outdoor OutdoorReader
}

func NewSource(cpu CPUReader, env EnvReader, hum HumidityReader, outdoor OutdoorReader) *Source {
	return &Source{cpu: cpu, env: env, hum: hum, outdoor: outdoor}
}

func (s *Source) Sample(ctx context.Context) (domain.Reading, error) {
	cpu, err := s.cpu.Read()
	if err != nil {
		return domain.Reading{}, &domain.HardwareError{Component: "cpu-thermal", Err: err}
	}
	ambient, pressure, err := s.env.Read()
	if err != nil {
		return domain.Reading{}, &domain.HardwareError{Component: "bmp180", Err: err}
	}
	humidity, err := s.hum.Read()
	if err != nil {
		return domain.Reading{}, &domain.HardwareError{Component: "dht22", Err: err}
	}
	outdoor, _ := s.outdoor.Current(ctx)

	return domain.Reading{
		At:          time.Now(),
		CPUTemp:     cpu,
		AmbientTemp: ambient,
		Pressure:    pressure,
		Humidity:    humidity,
		OutdoorTemp: outdoor,
	}, nil
}

var _ ports.Source = (*Source)(nil)
