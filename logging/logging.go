// Package logging wraps the process wide logger.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	once     sync.Once
	instance *log.Logger
)

func logger() *log.Logger {
	once.Do(func() {
		instance = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          "organconv",
		})
		instance.SetLevel(log.InfoLevel)
	})
	return instance
}

// SetVerbose switches between debug and info level.
func SetVerbose(verbose bool) {
	if verbose {
		logger().SetLevel(log.DebugLevel)
	} else {
		logger().SetLevel(log.InfoLevel)
	}
}

func SetOutput(w io.Writer) {
	logger().SetOutput(w)
}

func Debugf(msg string, args ...interface{}) {
	logger().Debugf(msg, args...)
}

func Infof(msg string, args ...interface{}) {
	logger().Infof(msg, args...)
}

func Warnf(msg string, args ...interface{}) {
	logger().Warnf(msg, args...)
}

func Errorf(msg string, args ...interface{}) {
	logger().Errorf(msg, args...)
}

func Fatalf(msg string, args ...interface{}) {
	logger().Fatalf(msg, args...)
}
