package core

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
	// without session fields
	base *log.Logger
}

var singleton *logger

func getLogger() *logger {
	if singleton == nil {
		once.Do(
			func() {
				l := log.NewWithOptions(os.Stderr, log.Options{
					ReportCaller:    true,
					ReportTimestamp: true,
					TimeFormat:      time.RFC3339,
					Prefix:          "Castle 🏰 ",
					// the wrappers below add one frame
					CallerOffset: 1,
				})
				l.SetLevel(log.InfoLevel)
				singleton = &logger{Logger: l, base: l}
			})
	}
	return singleton
}

// SetLogLevel changes the level of the engine logger. Accepted values are the
// charmbracelet/log level names (debug, info, warn, error, fatal).
func SetLogLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l := getLogger()
	l.base.SetLevel(lvl)
	l.Logger.SetLevel(lvl)
	return nil
}

// SetLogSession tags every following log line with the given session id,
// replacing the previous one.
func SetLogSession(id string) {
	l := getLogger()
	l.Logger = l.base.With("session", id)
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
