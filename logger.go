package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// log writes to stderr; stdout carries the JSON-RPC stream.
var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

func setLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	log.SetLevel(lvl)
	return nil
}

func logError(format string, args ...any) {
	log.Errorf(format, args...)
}
