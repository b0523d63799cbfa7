package app

import (
	"os"

	"course-pilot/internal/config"

	"github.com/sirupsen/logrus"
)

const (
	SEVERITY  = "severity"
	MESSAGE   = "message"
	TIMESTAMP = "timestamp"
	COMPONENT = "component"
)

// NewLogger configures the standard logrus logger for a Lambda function and
// returns an entry tagged with its name.
func NewLogger(serviceName string, cfg config.LogConfig) *logrus.Entry {
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(newFormatter())
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	return logrus.WithField(COMPONENT, serviceName)
}

func newFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  TIMESTAMP,
			logrus.FieldKeyLevel: SEVERITY,
			logrus.FieldKeyMsg:   MESSAGE,
		},
	}
}
