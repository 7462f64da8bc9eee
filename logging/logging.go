// Package logging provides the leveled logger used across hectorgo. It
// implements dragonboat's logger.ILogger on top of the standard log
// package so every subsystem can pull a named logger without dragging
// in a third logging convention.
package logging

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

// hgLogger implements logger.ILogger with a small prefix-based formatter.
type hgLogger struct {
	name   string
	level  logger.LogLevel
	logger *log.Logger
}

func (l *hgLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *hgLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *hgLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *hgLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *hgLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *hgLogger) Panicf(format string, args ...interface{}) {
	if l.level >= logger.CRITICAL {
		panic(fmt.Sprintf(format, args...))
	}
}

func (l *hgLogger) log(levelStr, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%-5s | %-16s | %s", levelStr, l.name, message)
}

// newLogger is dragonboat's logger.Factory signature.
func newLogger(pkgName string) logger.ILogger {
	return &hgLogger{
		name:   pkgName,
		level:  logger.INFO,
		logger: log.New(os.Stdout, "", log.Ldate|log.Ltime),
	}
}

func init() {
	logger.SetLoggerFactory(newLogger)
}

// ParseLevel converts a string level ("debug", "info", "warn", "error")
// into the dragonboat log level it corresponds to.
func ParseLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG
	case "info":
		return logger.INFO
	case "warning", "warn":
		return logger.WARNING
	case "error":
		return logger.ERROR
	default:
		return logger.INFO
	}
}

// SetLevel sets the log level for one of hectorgo's named loggers
// ("host", "conn", "hostpool", "cluster", "failover", "transport", "cmd").
func SetLevel(pkgName string, level logger.LogLevel) {
	logger.GetLogger(pkgName).SetLevel(level)
}

// Get returns the named logger, creating it on first use.
func Get(pkgName string) logger.ILogger {
	return logger.GetLogger(pkgName)
}
