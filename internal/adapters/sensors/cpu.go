package sensors

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CPUThermal reads the SoC temperature from the kernel thermal zone,
// reported in millidegrees Celsius.
type CPUThermal struct {
	path string
}

func NewCPUThermal(path string) *CPUThermal {
	return &CPUThermal{path: path}
}

// Read returns the CPU temperature in degrees Celsius.
func (c *CPUThermal) Read() (float64, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return 0, fmt.Errorf("thermal zone: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("thermal zone %s: %w", c.path, err)
	}
	return v / 1000.0, nil
}
