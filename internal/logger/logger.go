// Package logger builds the logrus logger shared by the CLI and the pipeline.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/util"
)

// Options configures New.
type Options struct {
	Level  string
	File   string
	Format string // "text" (default) or "json"
	// Output replaces stdout as the primary writer (tests).
	Output io.Writer
}

// New builds a logger writing to stdout and, when File is set, appending to it.
// Unknown levels fall back to info.
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	var primary io.Writer = os.Stdout
	if opts.Output != nil {
		primary = opts.Output
	}
	writers := []io.Writer{primary}
	if strings.TrimSpace(opts.File) != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}
	log.SetOutput(io.MultiWriter(writers...))
	return log, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ForRun returns an entry tagged with the run id.
func ForRun(log logrus.FieldLogger, runID string) *logrus.Entry {
	if log == nil {
		log = Discard()
	}
	return log.WithField("run_id", runID)
}

// Err attaches err, redacted, as the "error" field.
func Err(e *logrus.Entry, err error) *logrus.Entry {
	if err == nil {
		return e
	}
	return e.WithField("error", util.RedactSecrets(err.Error()))
}
