package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/habitual/internal/constants"
)

var (
	// Logger is the global logger instance
	Logger *log.Logger

	discard = log.New(io.Discard)
)

// Config holds logger configuration
type Config struct {
	Debug bool
	// Dir is where habitual.log is written. Defaults to <ConfigDir>/logs.
	Dir       string
	ConfigDir string
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	logDir := cfg.Dir
	if logDir == "" {
		logDir = filepath.Join(cfg.ConfigDir, "logs")
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, constants.AppName+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	level := log.WarnLevel
	if cfg.Debug {
		level = log.DebugLevel
	}

	// stderr only sees output in debug mode
	var writer io.Writer = fileWriter
	if cfg.Debug {
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
	})

	return nil
}

// Get returns the global logger, or a logger that discards everything when
// Init has not run.
func Get() *log.Logger {
	if Logger != nil {
		return Logger
	}
	return discard
}

// With returns a child of the global logger carrying keyvals.
func With(keyvals ...interface{}) *log.Logger {
	return Get().With(keyvals...)
}

// OrDefault returns l, or the global logger when l is nil.
func OrDefault(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return Get()
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// Fatal logs a fatal error and exits
func Fatal(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Fatal(msg, keyvals...)
	}
	os.Exit(1)
}
