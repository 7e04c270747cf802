package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger provides leveled logging for harness components.
// All loggers created with NewLogger in one process write to the same
// run-specific file: <log-dir>/<run-id>-authcache.log
type Logger struct {
	runID     string
	component string
	file      *os.File
	zl        zerolog.Logger
	logPath   string
	closeOnce sync.Once
}

var (
	// runID identifies the current harness run; shared across components
	runID     string
	runIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir = filepath.Join(".auth", "logs")

	// level is the minimum level written by new loggers
	level = zerolog.InfoLevel

	// console, when non-nil, receives a human-readable copy of every entry
	console io.Writer

	// initOnce ensures directory initialization happens once
	initOnce sync.Once

	// initErr stores any error from directory initialization
	initErr error

	mu sync.Mutex
)

// Options configures process-wide logging. Call Configure before the first
// NewLogger; later calls only affect loggers created afterwards.
type Options struct {
	// Dir is the directory for run log files
	Dir string

	// Level is one of debug, info, warn, error
	Level string

	// RunID overrides the generated run identifier (used to share one id
	// across processes taking part in the same run)
	RunID string

	// Console mirrors entries to stderr when true
	Console bool
}

// Configure applies process-wide logging options.
func Configure(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if opts.Dir != "" {
		logDir = opts.Dir
		initOnce = sync.Once{}
		initErr = nil
	}

	if opts.Level != "" {
		lvl, err := ParseLevel(opts.Level)
		if err != nil {
			return err
		}
		level = lvl
	}

	if opts.RunID != "" {
		runIDOnce.Do(func() {})
		runID = opts.RunID
	}

	if opts.Console {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	} else {
		console = nil
	}
	return nil
}

// ParseLevel converts a level name into a zerolog level.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", name)
	}
}

// getRunID returns or creates the run ID for this process
func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// initLogDirectory ensures the log directory exists
func initLogDirectory() error {
	initOnce.Do(func() {
		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
		}
	})
	return initErr
}

// NewLogger creates a new logger for a specific component.
//
// If the log directory cannot be created or the log file cannot be opened,
// it returns a fallback logger that writes to stderr along with the error.
// Callers can check the error to detect fallback mode.
func NewLogger(component string) (*Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	id := getRunID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-authcache.log", id))

	// Append mode: every component of the run shares the file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallbackLogger(component, err), err
	}

	var out io.Writer = file
	if console != nil {
		out = zerolog.MultiLevelWriter(file, console)
	}

	return &Logger{
		runID:     id,
		component: component,
		file:      file,
		zl:        newZerolog(out, component, id),
		logPath:   logPath,
	}, nil
}

// New creates a logger writing to w without touching the log directory.
func New(component string, w io.Writer) *Logger {
	mu.Lock()
	defer mu.Unlock()
	id := getRunID()
	return &Logger{
		runID:     id,
		component: component,
		zl:        newZerolog(w, component, id),
	}
}

// Discard returns a logger that drops every entry.
func Discard(component string) *Logger {
	return &Logger{component: component, zl: zerolog.Nop()}
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails
func newFallbackLogger(component string, err error) *Logger {
	zl := newZerolog(zerolog.ConsoleWriter{Out: os.Stderr}, component, getRunID())
	zl.Warn().Err(err).Msg("failed to initialize file logging, falling back to stderr")

	return &Logger{
		runID:     getRunID(),
		component: component,
		zl:        zl,
	}
}

func newZerolog(w io.Writer, component, id string) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Str("run", id).
		Logger()
}

// With returns a child logger for a sub-component, sharing the same output.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		runID:     l.runID,
		component: component,
		zl:        l.zl.With().Str("component", component).Logger(),
		logPath:   l.logPath,
	}
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// Zerolog exposes the underlying logger for structured fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// RunID returns the run ID this logger was created under
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the path to the log file, empty for non-file loggers
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// GetRunID returns the current global run ID
func GetRunID() string {
	mu.Lock()
	defer mu.Unlock()
	return getRunID()
}

// GetLogDirectory returns the directory where logs are stored
func GetLogDirectory() (string, error) {
	mu.Lock()
	defer mu.Unlock()
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}
