// Package log centralizes structured logging for the engine. Everything
// funnels through one slog.Logger so a single call redirects the whole
// process, including simulator traffic tracing, to a file.
package log

import (
	"io"
	"log/slog"
	"os"
)

type sink struct {
	logger *slog.Logger
	file   *os.File
}

var global *sink

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	global = &sink{logger: slog.New(handler), file: nil}
}

// SetOutput redirects all logging to w at the given level.
func SetOutput(w io.Writer, level slog.Level) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if global != nil && global.file != nil {
		global.file.Close()
	}
	global = &sink{logger: slog.New(handler)}
}

// SetFileOutput redirects all logging to the named file, appending.
func SetFileOutput(filename string, level slog.Level) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return err
	}
	handler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   slog.TimeKey,
					Value: slog.StringValue(a.Value.Time().Format("2006/01/02 15:04:05.000000")),
				}
			}
			return a
		},
	})
	if global != nil && global.file != nil {
		global.file.Close()
	}
	global = &sink{logger: slog.New(handler), file: file}
	return nil
}

func Debug(msg string, args ...any) {
	if global != nil {
		global.logger.Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if global != nil {
		global.logger.Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if global != nil {
		global.logger.Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if global != nil {
		global.logger.Error(msg, args...)
	}
}

// Close releases the log file, if any.
func Close() {
	if global != nil && global.file != nil {
		global.file.Close()
		global.file = nil
	}
}
