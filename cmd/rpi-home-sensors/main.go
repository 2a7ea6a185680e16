package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dkorunic/rpi-home-sensors/internal/app"
	"github.com/dkorunic/rpi-home-sensors/internal/app/config"
	"github.com/dkorunic/rpi-home-sensors/internal/logging"
)

const defaultConfigPath = "/etc/rpi-home-sensors/config.yaml"

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "version":
		fmt.Printf("rpi-home-sensors %s\n", version)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "rpi-home-sensors %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to configuration file")
	foreground := fs.Bool("foreground", false, "Human-readable terminal logs instead of JSON")
	debug := fs.Bool("debug", false, "Debug logging; implies -foreground")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// GPIO and I2C access needs root on a stock Raspberry Pi OS.
	if os.Geteuid() != 0 {
		return errors.New("must run as root for sensor access")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(*foreground || *debug, *debug, version)
	slog.SetDefault(logger)

	logger.Info("starting",
		"version", version,
		"config", *cfgPath,
		"period", cfg.Sample.Period.Std())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, cfg, logger)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	fmt.Printf("  period        %s\n", cfg.Sample.Period.Std())
	fmt.Printf("  queue         %d readings\n", cfg.Queue.Capacity)
	fmt.Printf("  chart         %s (%d points)\n", cfg.Chart.URL, cfg.Chart.MaxPoints)
	if cfg.Sheet.Driver != "" {
		fmt.Printf("  sheet         %s\n", cfg.Sheet.Driver)
	} else {
		fmt.Printf("  sheet         disabled\n")
	}
	if cfg.Metrics.Addr != "" {
		fmt.Printf("  metrics       %s\n", cfg.Metrics.Addr)
	}
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"sensors_samples_total":            0,
		"sensors_queue_len":                0,
		"sensors_readings_delivered_total": 0,
		"sensors_queue_evicted_total":      0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] samples=%.0f queued=%.0f delivered=%.0f evicted=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets["sensors_samples_total"],
		targets["sensors_queue_len"],
		targets["sensors_readings_delivered_total"],
		targets["sensors_queue_evicted_total"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`rpi-home-sensors

Usage:
  rpi-home-sensors <command> [flags]

Commands:
  run        Sample the sensors and publish readings (needs root)
  validate   Load and validate a config file without touching hardware
  stats      Poll the metrics endpoint and print live counters
  version    Print the build version
  help       Show this message

Examples:
  rpi-home-sensors run -config /etc/rpi-home-sensors/config.yaml
  rpi-home-sensors run -foreground -debug
  rpi-home-sensors validate -config ./config.example.yaml
  rpi-home-sensors stats -interval 5s
`)
}
