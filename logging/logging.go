// Package logging configures the process-wide structured logger. It is
// grounded on the teacher's logrus usage throughout the codebase (eve.Logger
// in cli/consumer.go, level/format driven by ServiceConfig.LogLevel in the
// now-superseded config package) and narrowed to the two fields this system
// actually needs: level and format.
package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger configured from level/format strings, falling
// back to Info/text on an unrecognised value rather than erroring — a
// misconfigured log level should not prevent the process from starting.
func New(level, format string) *logrus.Logger {
	log := logrus.New()

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

// WithService returns an entry that carries a "service" field, so log lines
// from the processor and ingress binaries can be told apart downstream.
func WithService(log *logrus.Logger, service string) *logrus.Entry {
	return log.WithField("service", service)
}
