package logger

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the worker's root logger from the LOG_LEVEL and LOG_FORMAT
// settings. Format "json" writes one JSON object per line to stdout; any
// other value selects the human console writer.
func New(level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(format, "json") {
		return zerolog.New(os.Stdout).Level(ParseLevel(level)).With().Timestamp().Logger()
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a LOG_LEVEL value to a zerolog level, case-insensitive.
// WARNING is accepted as an alias for warn; anything unparseable falls
// back to info.
func ParseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// RedactEmail masks every email address inside s, keeping at most two
// characters of the local part. Values without an address pass through
// unchanged, so row and staging issue keys stay readable.
func RedactEmail(s string) string {
	return emailRegex.ReplaceAllStringFunc(s, func(email string) string {
		name, domain, _ := strings.Cut(email, "@")
		if len(name) > 2 {
			return name[:2] + "***@" + domain
		}
		return "***@" + domain
	})
}
