package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New builds the daemon logger. Foreground runs get a colorized tint
// handler for humans at a terminal; background runs get JSON for the
// journal. Debug lowers the level and records source locations.
func New(foreground, debug bool, version string) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	if foreground {
		h := tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			AddSource:  debug,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", "rpi-home-sensors")
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With(
		"app", "rpi-home-sensors",
		"version", version,
	)
}
