package engine

import (
	log "github.com/sirupsen/logrus"
)

// Level is the severity of an engine log line.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Logger is the capability through which the engine emits human-readable
// progress and error lines. The engine never hardcodes an output sink.
type Logger interface {
	Log(level Level, message string)
}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(level Level, message string)

func (f LoggerFunc) Log(level Level, message string) {
	f(level, message)
}

// StdLogger routes engine output to logrus, for callers that do not capture
// logs themselves.
func StdLogger() Logger {
	return LoggerFunc(func(level Level, message string) {
		switch level {
		case LevelError:
			log.Error(message)
		case LevelWarning:
			log.Warn(message)
		default:
			log.Info(message)
		}
	})
}
