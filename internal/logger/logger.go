package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger handed out by this package
type Logger = *logrus.Entry

var (
	base = newBase()

	progressMu   sync.Mutex
	progressTask string
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetVerbosity applies the CLI flags on top of the configured level:
// --debug logs everything, --verbose at least info.
func SetVerbosity(debug, verbose bool) {
	switch {
	case debug:
		base.SetLevel(logrus.DebugLevel)
	case verbose && base.GetLevel() < logrus.InfoLevel:
		base.SetLevel(logrus.InfoLevel)
	}
}

// Configure applies a level name and format (text or json)
func Configure(level, format string) error {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		base.SetLevel(lvl)
	}

	switch strings.ToLower(format) {
	case "", "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

// SetOutput redirects all log output, stderr by default
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

func WithField(key string, value interface{}) Logger {
	return base.WithField(key, value)
}

// StartProgress announces a long-running task
func StartProgress(task string) {
	progressMu.Lock()
	progressTask = task
	progressMu.Unlock()
	base.WithField("task", task).Info("started")
}

func EndProgress(success bool) {
	progressMu.Lock()
	task := progressTask
	progressTask = ""
	progressMu.Unlock()

	entry := base.WithField("task", task)
	if success {
		entry.Info("completed")
	} else {
		entry.Warn("failed")
	}
}
