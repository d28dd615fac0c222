package config

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the JSON logger shared by every component.
func NewLogger(level string) *logrus.Logger {
	logg := logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logg.SetLevel(lvl)
	return logg
}

// NewDiscardLogger returns a logger that writes nowhere. Used by tests.
func NewDiscardLogger() *logrus.Logger {
	logg := logrus.New()
	logg.SetOutput(io.Discard)
	return logg
}

// LogError logs err at error level with the component, function and request context
// it happened in. data is attached under "data" when non-nil.
func LogError(logger logrus.FieldLogger, component string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"component": component,
		"funcName":  funcName,
		"context":   context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
