// Package logging centralizes logger construction so every binary and
// test gets the same output shape.
package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const EnvLogLevel = "SEVAULT_LOG_LEVEL"

// Init builds the process logger: console output, app field, level
// from SEVAULT_LOG_LEVEL (info when unset or unparseable). It also
// installs the logger as the zerolog global.
func Init(app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).
		Level(levelFromEnv()).
		With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// Test returns a quiet logger for test fixtures; set the env level to
// debug to watch protocol traffic while debugging a test.
func Test() zerolog.Logger {
	if os.Getenv(EnvLogLevel) != "" {
		return Init("test")
	}
	return zerolog.Nop()
}

func levelFromEnv() zerolog.Level {
	level, err := ParseLevel(os.Getenv(EnvLogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// ParseLevel maps a level name to a zerolog level. The empty string
// means info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off", "none":
		return zerolog.Disabled, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}
