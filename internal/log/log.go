// Package log provides the process-wide structured logger.
package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Fields is an alias so callers don't import logrus for structured fields.
type Fields = logrus.Fields

// L returns the global logger, building it on first use.
//
// LOG_LEVEL selects the level (debug, info, warn, error; default info). Unless APP_ENV is
// "test", output is also written to a rotating file under LOG_DIR (default ./storage/logs).
func L() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))
		logger.SetFormatter(&formatter.Formatter{
			TimestampFormat: "02 Jan 06 - 15:04:05",
			HideKeys:        false,
			CallerFirst:     true,
			CustomCallerFormatter: func(f *runtime.Frame) string {
				s := strings.Split(f.Function, ".")
				return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
			},
		})

		writers := []io.Writer{os.Stderr}
		if os.Getenv("APP_ENV") != "test" {
			dir := os.Getenv("LOG_DIR")
			if dir == "" {
				dir = filepath.Join("storage", "logs")
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   filepath.Join(dir, fmt.Sprintf("focuswatch-%s.log", time.Now().Format("2006-01-02"))),
				LocalTime:  true,
				Compress:   true,
				MaxSize:    100, // megabytes
				MaxAge:     7,
				MaxBackups: 3,
			})
		}

		logger.SetOutput(io.MultiWriter(writers...))
		logger.SetReportCaller(true)
	})
	return logger
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Component returns an entry tagged with the emitting component.
func Component(name string) *logrus.Entry {
	return L().WithField("component", name)
}

// Debug logs at debug level.
func Debug(fields Fields, msg string) { L().WithFields(fields).Debug(msg) }

// Info logs at info level.
func Info(fields Fields, msg string) { L().WithFields(fields).Info(msg) }

// Warn logs at warn level.
func Warn(fields Fields, msg string) { L().WithFields(fields).Warn(msg) }

// Error logs at error level.
func Error(fields Fields, msg string) { L().WithFields(fields).Error(msg) }
