package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Log formats.
const (
	logFormatConsole = "console"
	logFormatJSON    = "json"
)

// newLogger creates the process logger. Records go to stderr and, when a log file
// is configured, to a rotating log file as json.
func newLogger(cfg *Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level: %w", err)
	}

	var out io.Writer = os.Stderr
	if cfg.LogFormat == logFormatConsole {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	var closer io.Closer
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()

	return logger, closer, nil
}
