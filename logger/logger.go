package logger

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = "info"

// New builds the shared logrus logger. The level name is parsed
// case-insensitively; an unknown name is an error rather than a silent
// fallback so a typo in --log-level does not hide debug output.
func New(level string) (*logrus.Logger, error) {
	if level == "" {
		level = DefaultLevel
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %q: %w", level, err)
	}

	l := logrus.New()
	l.SetLevel(parsed)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l, nil
}

// Discard returns a logger that swallows all output. Test helper.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
