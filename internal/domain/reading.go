package domain

import (
	"fmt"
	"time"
)

// Reading is one complete snapshot of every sensor the daemon samples.
// It is a plain value; once produced it is never mutated.
type Reading struct {
	At          time.Time `json:"ts"`
	CPUTemp     float64   `json:"cpu_temp"`
	AmbientTemp float64   `json:"ambient_temp"`
	Pressure    float64   `json:"pressure"`
	Humidity    float64   `json:"humidity"`
	OutdoorTemp float64   `json:"outdoor_temp"`
}

// StampLayout is the x-axis time format the chart service expects,
// wall-clock with microsecond precision.
const StampLayout = "2006-01-02 15:04:05.000000"

// Stamp returns the capture time in StampLayout form.
func (r Reading) Stamp() string {
	return r.At.Format(StampLayout)
}

// HardwareError reports a failed read of a local sensor. Local sensors are
// required hardware, so the sampling loop treats this as fatal.
type HardwareError struct {
	Component string
	Err       error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware %s: %v", e.Component, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }
