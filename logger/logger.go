// Package logger provides centralized logging for the application.
// File: logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ------------------- global logger -------------------

// current holds the process-wide logger. It starts on stderr so that packages
// can log before InitLogger has run (tests, early boot).
var current atomic.Pointer[zerolog.Logger]

// logFile is the file opened by the last InitLogger, closed when the output
// is swapped again.
var (
	fileMu  sync.Mutex
	logFile *os.File
)

func init() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	current.Store(&l)
}

// ------------------- logger initialization -------------------

// InitLogger creates or reinitializes the logging system. It:
// - Ensures `dir` exists (./logs when empty).
// - Creates a timestamped log file in `dir`.
// - Writes logs to both the file and stdout.
// - Closes the file of any previous call.
func InitLogger(dir string) error {
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	logFileName := filepath.Join(dir, time.Now().Format("2006-01-02_15-04-05")+".log")
	file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	// console for humans on stdout, JSON lines in the file
	multi := zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}, file)
	swapOutput(multi, file)
	return nil
}

// SetOutput swaps the destination of the process-wide logger, keeping its
// level. A log file opened by InitLogger is closed.
func SetOutput(w io.Writer) {
	swapOutput(w, nil)
}

// Close sends further output to stderr and closes the log file, if any.
func Close() {
	SetOutput(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func swapOutput(w io.Writer, file *os.File) {
	fileMu.Lock()
	defer fileMu.Unlock()

	level := current.Load().GetLevel()
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	current.Store(&l)

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			l.Warn().Err(err).Str("file", logFile.Name()).Msg("[logger.swapOutput] Failed to close log file")
		}
	}
	logFile = file
}

// SetLogLevel adjusts verbosity depending on environment: production drops
// debug and trace output, everything else keeps it.
func SetLogLevel(env string) {
	if env == "production" {
		setLevel(zerolog.InfoLevel)
		return
	}
	setLevel(zerolog.TraceLevel)
}

// SetLevel sets an explicit level by name (trace, debug, info, warn, error).
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	setLevel(lvl)
	return nil
}

func setLevel(lvl zerolog.Level) {
	l := current.Load().Level(lvl)
	current.Store(&l)
}

// ------------------- accessors -------------------

// Logger returns a copy of the process-wide logger, for components that want
// to attach their own fields with With().
func Logger() zerolog.Logger { return *current.Load() }

func Trace() *zerolog.Event { return current.Load().Trace() }
func Debug() *zerolog.Event { return current.Load().Debug() }
func Info() *zerolog.Event  { return current.Load().Info() }
func Warn() *zerolog.Event  { return current.Load().Warn() }
func Error() *zerolog.Event { return current.Load().Error() }

// Fatal logs and exits the process once the event is sent.
func Fatal() *zerolog.Event { return current.Load().Fatal() }
