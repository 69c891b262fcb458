// Package logger provides leveled logging for papersoul.
//
// Logging is quiet by default: only errors reach stderr. The --verbose flag
// lowers the level to debug so the retrieval and chat pipeline can be
// followed step by step. Long-running servers can additionally write every
// level to a rotating log file.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	file    io.WriteCloser
	base    = newBase(os.Stderr, false)
)

func newBase(w io.Writer, debug bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          "papersoul",
		ReportTimestamp: debug,
	})
	if debug {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.ErrorLevel)
	}
	return l
}

func rebuild() {
	w := output
	if file != nil {
		w = io.MultiWriter(output, file)
	}
	base = newBase(w, verbose || file != nil)
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// SetFile additionally writes all levels to a size-rotated file.
// An empty path disables file logging.
func SetFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	if path != "" {
		file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	rebuild()
}

func current() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug logs a pipeline detail.
func Debug(format string, args ...any) {
	current().Debugf(format, args...)
}

// Section logs a section header for a pipeline stage.
func Section(name string) {
	current().Debug("=== " + name + " ===")
}

// Info logs an informational message.
func Info(format string, args ...any) {
	current().Infof(format, args...)
}

// Warn logs a degraded but recoverable condition.
func Warn(format string, args ...any) {
	current().Warnf(format, args...)
}

// Error logs a failure. Errors are printed even when verbose mode is off.
func Error(format string, args ...any) {
	current().Errorf(format, args...)
}
