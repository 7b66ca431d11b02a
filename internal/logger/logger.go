package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns the service logger. Debug output (reset application, swallowed
// store errors, cross-tab traffic) is only emitted when debug is set.
func New(debug bool) *logrus.Logger {
	return NewWithOutput(os.Stderr, debug)
}

func NewWithOutput(w io.Writer, debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetLevel(logrus.InfoLevel)
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
