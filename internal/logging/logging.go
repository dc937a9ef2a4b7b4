// Package logging sets up the zerolog root logger: console with colors,
// a per-session log file in line format, and optionally a GELF writer
// shipping to Graylog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Config holds root logger settings.
type Config struct {
	Level   string
	LogsDir string

	GraylogEnabled bool
	GraylogAddress string
}

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel maps a config log level string to a zerolog level. Unknown
// strings fall back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "TRACE":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup builds the root logger and returns it along with a cleanup func
// closing the session log file.
func Setup(appName string, cfg Config) (zerolog.Logger, func(), error) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	if err := os.MkdirAll(cfg.LogsDir, 0o755); err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("creating logs dir: %w", err)
	}

	path := LogFilePath(cfg.LogsDir, appName, time.Now().UTC())
	file, err := os.Create(path)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("creating log file: %w", err)
	}

	writers := []io.Writer{
		// console format with colors to console
		zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		},
		// console format without colors to file
		zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		},
	}

	if cfg.GraylogEnabled {
		gw, err := gelf.NewWriter(cfg.GraylogAddress)
		if err != nil {
			// Graylog being down must not keep the operator from driving.
			fmt.Fprintf(os.Stderr, "graylog writer unavailable: %v\n", err)
		} else {
			writers = append(writers, gw)
		}
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Str("app", appName).Logger()

	cleanup := func() {
		_ = file.Close()
	}

	log.Info().Str("loglevel", log.GetLevel().String()).Str("logFile", path).Msg("Logging set up")
	return log, cleanup, nil
}
