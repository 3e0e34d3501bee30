package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// stdout is the console destination, swapped out in tests.
var stdout io.Writer = os.Stdout

// SlogManager owns the process-wide slog logger and the outputs behind it.
type SlogManager struct {
	logger  *slog.Logger
	closers []io.Closer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the logger. Records go to file when one is given and to the
// console otherwise; extra handlers (GELF) always receive them as well.
// Writers or handlers that implement io.Closer are closed by Close.
func (m *SlogManager) Setup(file io.Writer, level string, extra ...slog.Handler) {
	lvl := parseLevel(level)

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	m.closers = nil
	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
		if c, ok := file.(io.Closer); ok {
			m.closers = append(m.closers, c)
		}
	} else {
		handlers = append(handlers, slog.NewTextHandler(stdout, handlerOpts))
	}

	for _, h := range extra {
		if h == nil {
			continue
		}
		handlers = append(handlers, levelFilter{Handler: h, level: lvl})
		if c, ok := h.(io.Closer); ok {
			m.closers = append(m.closers, c)
		}
	}

	m.logger = slog.New(NewContextHandler(NewMultiHandler(handlers...)))
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Close releases the file and GELF outputs registered by Setup.
func (m *SlogManager) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
