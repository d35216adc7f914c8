package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options selects the log level and an optional JSON log file.
type Options struct {
	Level   string
	Verbose bool
	Quiet   bool
	File    string
}

// New creates a logger writing human-readable lines to out. When
// opts.File is set every entry is also appended there as JSON. The returned
// closer should be closed when logging is no longer needed.
func New(out io.Writer, opts Options) (*logrus.Logger, io.Closer, error) {
	level, err := parseLevel(opts)
	if err != nil {
		return nil, nil, err
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})

	if opts.File == "" {
		return logger, io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.AddHook(&fileHook{w: file, formatter: &logrus.JSONFormatter{}})
	return logger, file, nil
}

func parseLevel(opts Options) (logrus.Level, error) {
	switch {
	case opts.Verbose:
		return logrus.DebugLevel, nil
	case opts.Quiet:
		return logrus.WarnLevel, nil
	case strings.TrimSpace(opts.Level) == "":
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		return 0, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

// fileHook mirrors entries into a secondary writer with its own formatter.
type fileHook struct {
	w         io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}
