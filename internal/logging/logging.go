// Package logging builds the logrus loggers handed to the engine and the
// workspace. Library code never logs through the logrus package-level logger;
// it receives a logrus.FieldLogger explicitly.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Format selects the log line encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	Level  string
	Format Format
	Out    io.Writer // defaults to os.Stderr
}

// Validate checks the level and format.
func (o Options) Validate() error {
	if _, err := logrus.ParseLevel(o.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch o.Format {
	case FormatText, FormatJSON, "":
		return nil
	default:
		return fmt.Errorf("unsupported log format: %s", o.Format)
	}
}

// New returns a logger configured by opts.
func New(opts Options) (*logrus.Logger, error) {
	if opts.Level == "" {
		opts.Level = "info"
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	level, _ := logrus.ParseLevel(opts.Level)

	l := logrus.New()
	l.SetLevel(level)
	if opts.Out != nil {
		l.SetOutput(opts.Out)
	} else {
		l.SetOutput(os.Stderr)
	}
	if opts.Format == FormatJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}
