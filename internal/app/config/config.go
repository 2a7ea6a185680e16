package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so the YAML file can carry values like
// "300s" or "5m". A bare integer is taken as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("duration must be a string like %q or integer seconds", "300s")
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Sample    SampleConfig    `yaml:"sample"`
	Weather   WeatherConfig   `yaml:"weather"`
	Queue     QueueConfig     `yaml:"queue"`
	Backoff   BackoffConfig   `yaml:"backoff"`
	Chart     ChartConfig     `yaml:"chart"`
	Sheet     SheetConfig     `yaml:"sheet"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	StatusLED StatusLEDConfig `yaml:"status_led"`
}

type SampleConfig struct {
	Period         Duration  `yaml:"period"`
	CPUThermalPath string    `yaml:"cpu_thermal_path"`
	BMP            BMPConfig `yaml:"bmp"`
	DHT            DHTConfig `yaml:"dht"`
}

type BMPConfig struct {
	// Bus is a periph i2creg bus name; empty selects the first available.
	Bus  string `yaml:"bus"`
	Addr uint16 `yaml:"addr"`
	Mode string `yaml:"mode"`
}

type DHTConfig struct {
	Pin        string   `yaml:"pin"`
	Retries    int      `yaml:"retries"`
	RetryDelay Duration `yaml:"retry_delay"`
}

type WeatherConfig struct {
	// URL is optional; when empty the fallback constant is always used.
	URL       string   `yaml:"url"`
	FallbackC float64  `yaml:"fallback_c"`
	Refresh   Duration `yaml:"refresh"`
	Timeout   Duration `yaml:"timeout"`
}

type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

type BackoffConfig struct {
	Floor   Duration `yaml:"floor"`
	Ceiling Duration `yaml:"ceiling"`
}

type ChartConfig struct {
	URL          string        `yaml:"url"`
	APIKey       string        `yaml:"api_key"`
	Title        string        `yaml:"title"`
	MaxPoints    int           `yaml:"max_points"`
	WriteTimeout Duration      `yaml:"write_timeout"`
	Streams      StreamsConfig `yaml:"streams"`
}

// StreamsConfig maps each series to the stream id issued by the chart
// service. All five are required.
type StreamsConfig struct {
	CPU      string `yaml:"cpu"`
	Ambient  string `yaml:"ambient"`
	Humidity string `yaml:"humidity"`
	Pressure string `yaml:"pressure"`
	Outdoor  string `yaml:"outdoor"`
}

type SheetConfig struct {
	// Driver is "sqlite3" or "postgres"; empty disables the row store.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type MetricsConfig struct {
	// Addr serves /metrics and /healthz; empty disables the listener.
	Addr string `yaml:"addr"`
}

type StatusLEDConfig struct {
	// Pin is a periph gpioreg name like "GPIO17"; empty disables the LED.
	Pin string `yaml:"pin"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Sample.Period == 0 {
		c.Sample.Period = Duration(300 * time.Second)
	}
	if c.Sample.CPUThermalPath == "" {
		c.Sample.CPUThermalPath = "/sys/class/thermal/thermal_zone0/temp"
	}
	if c.Sample.BMP.Addr == 0 {
		c.Sample.BMP.Addr = 0x77
	}
	if c.Sample.BMP.Mode == "" {
		c.Sample.BMP.Mode = "standard"
	}
	if c.Sample.DHT.Pin == "" {
		c.Sample.DHT.Pin = "GPIO4"
	}
	if c.Sample.DHT.Retries == 0 {
		c.Sample.DHT.Retries = 15
	}
	if c.Sample.DHT.RetryDelay == 0 {
		c.Sample.DHT.RetryDelay = Duration(2 * time.Second)
	}
	if c.Weather.FallbackC == 0 {
		c.Weather.FallbackC = 15.0
	}
	if c.Weather.Refresh == 0 {
		c.Weather.Refresh = Duration(10 * time.Minute)
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = Duration(5 * time.Second)
	}
	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = 120
	}
	if c.Backoff.Floor == 0 {
		c.Backoff.Floor = Duration(2 * time.Second)
	}
	if c.Backoff.Ceiling == 0 {
		c.Backoff.Ceiling = Duration(5 * time.Minute)
	}
	if c.Chart.Title == "" {
		c.Chart.Title = "Raspberry PI Sensors"
	}
	if c.Chart.MaxPoints == 0 {
		c.Chart.MaxPoints = 300
	}
	if c.Chart.WriteTimeout == 0 {
		c.Chart.WriteTimeout = Duration(10 * time.Second)
	}
	// Metrics.Addr carries no default: the listener is opt-in.
}

func (c *Config) validate() error {
	if c.Sample.Period <= 0 {
		return fmt.Errorf("sample.period must be positive")
	}
	switch c.Sample.BMP.Mode {
	case "ultralow", "standard", "high", "ultrahigh":
	default:
		return fmt.Errorf("sample.bmp.mode %q is not one of ultralow, standard, high, ultrahigh", c.Sample.BMP.Mode)
	}
	if c.Sample.DHT.Retries < 1 {
		return fmt.Errorf("sample.dht.retries must be at least 1")
	}
	if c.Sample.DHT.RetryDelay < 0 {
		return fmt.Errorf("sample.dht.retry_delay must not be negative")
	}
	if c.Weather.Refresh < 0 {
		return fmt.Errorf("weather.refresh must not be negative")
	}
	if c.Weather.Timeout < 0 {
		return fmt.Errorf("weather.timeout must not be negative")
	}
	if c.Queue.Capacity < 1 {
		return fmt.Errorf("queue.capacity must be at least 1")
	}
	if c.Backoff.Floor <= 0 {
		return fmt.Errorf("backoff.floor must be positive")
	}
	if c.Backoff.Ceiling < c.Backoff.Floor {
		return fmt.Errorf("backoff.ceiling must not be below backoff.floor")
	}
	if c.Chart.URL == "" {
		return fmt.Errorf("chart.url is required")
	}
	if !strings.HasPrefix(c.Chart.URL, "ws://") && !strings.HasPrefix(c.Chart.URL, "wss://") {
		return fmt.Errorf("chart.url must use ws:// or wss://")
	}
	if c.Chart.APIKey == "" {
		return fmt.Errorf("chart.api_key is required")
	}
	if c.Chart.WriteTimeout < 0 {
		return fmt.Errorf("chart.write_timeout must not be negative")
	}
	for _, s := range []struct{ name, id string }{
		{"cpu", c.Chart.Streams.CPU},
		{"ambient", c.Chart.Streams.Ambient},
		{"humidity", c.Chart.Streams.Humidity},
		{"pressure", c.Chart.Streams.Pressure},
		{"outdoor", c.Chart.Streams.Outdoor},
	} {
		if s.id == "" {
			return fmt.Errorf("chart.streams.%s is required", s.name)
		}
	}
	switch c.Sheet.Driver {
	case "", "sqlite3", "postgres":
	default:
		return fmt.Errorf("sheet.driver %q is not one of sqlite3, postgres", c.Sheet.Driver)
	}
	if c.Sheet.Driver != "" && c.Sheet.DSN == "" {
		return fmt.Errorf("sheet.dsn is required when sheet.driver is set")
	}
	return nil
}
