// logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the lowercase level name used in config files.
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel maps a config value ("debug", "info", "warn", "error") to a LogLevel.
func ParseLevel(value string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", value)
	}
}

type Logger struct {
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	// file loggers never carry colour codes
	debugLoggerNoColor *log.Logger
	infoLoggerNoColor  *log.Logger
	warnLoggerNoColor  *log.Logger
	errorLoggerNoColor *log.Logger
	file               *os.File
	consoleOutput      io.Writer
	fileOutput         io.Writer
	colored            bool
	minLevel           LogLevel
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// ensureInitialized creates a default console logger if one doesn't exist
func ensureInitialized() {
	mu.RLock()
	ready := defaultLogger != nil
	mu.RUnlock()
	if ready {
		return
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger != nil {
		return
	}
	defaultLogger = &Logger{
		consoleOutput: os.Stdout,
		colored:       isTerminal(os.Stdout),
		minLevel:      INFO,
	}
	defaultLogger.setupLoggers()
}

// Init initializes the logger with optional file and console output.
// If filename is empty, logs only to console.
// If console is false, logs only to file.
func Init(filename string, console bool, level LogLevel) error {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
	}

	next := &Logger{minLevel: level}

	if filename != "" {
		file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		next.file = file
		next.fileOutput = file
	}

	if console {
		next.consoleOutput = os.Stdout
		next.colored = isTerminal(os.Stdout)
	}

	if next.fileOutput == nil && next.consoleOutput == nil {
		return fmt.Errorf("no output destination specified")
	}

	next.setupLoggers()
	defaultLogger = next
	return nil
}

// SetOutput routes console output to w without colour. Tests use it to
// capture or silence log lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	level := INFO
	if defaultLogger != nil {
		level = defaultLogger.minLevel
	}
	defaultLogger = &Logger{consoleOutput: w, minLevel: level}
	defaultLogger.setupLoggers()
}

// SetLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR)
// Messages below this level will not be logged
func SetLevel(level LogLevel) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	defaultLogger.minLevel = level
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (l *Logger) setupLoggers() {
	flags := log.Ldate | log.Ltime | log.Lshortfile

	if l.consoleOutput != nil {
		if l.colored {
			l.debugLogger = log.New(l.consoleOutput, colorGray+"[DEBUG] "+colorReset, flags)
			l.infoLogger = log.New(l.consoleOutput, colorReset+"[INFO]  "+colorReset, flags)
			l.warnLogger = log.New(l.consoleOutput, colorYellow+"[WARN]  "+colorReset, flags)
			l.errorLogger = log.New(l.consoleOutput, colorRed+"[ERROR] "+colorReset, flags)
		} else {
			l.debugLogger = log.New(l.consoleOutput, "[DEBUG] ", flags)
			l.infoLogger = log.New(l.consoleOutput, "[INFO]  ", flags)
			l.warnLogger = log.New(l.consoleOutput, "[WARN]  ", flags)
			l.errorLogger = log.New(l.consoleOutput, "[ERROR] ", flags)
		}
	}

	if l.fileOutput != nil {
		l.debugLoggerNoColor = log.New(l.fileOutput, "[DEBUG] ", flags)
		l.infoLoggerNoColor = log.New(l.fileOutput, "[INFO]  ", flags)
		l.warnLoggerNoColor = log.New(l.fileOutput, "[WARN]  ", flags)
		l.errorLoggerNoColor = log.New(l.fileOutput, "[ERROR] ", flags)
	}
}

// Close closes the log file if one is open
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if defaultLogger != nil && defaultLogger.file != nil {
		defaultLogger.file.Close()
		defaultLogger.file = nil
		defaultLogger.fileOutput = nil
	}
}

func (l *Logger) output(level LogLevel, msg string) {
	if level < l.minLevel {
		return
	}

	var console, file *log.Logger
	switch level {
	case DEBUG:
		console, file = l.debugLogger, l.debugLoggerNoColor
	case INFO:
		console, file = l.infoLogger, l.infoLoggerNoColor
	case WARN:
		console, file = l.warnLogger, l.warnLoggerNoColor
	default:
		console, file = l.errorLogger, l.errorLoggerNoColor
	}

	// skip output, emit and the exported helper so the caller's line is reported
	if l.consoleOutput != nil && console != nil {
		console.Output(4, msg)
	}
	if l.fileOutput != nil && file != nil {
		file.Output(4, msg)
	}
}

func emit(level LogLevel, msg string) {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	defaultLogger.output(level, msg)
}

// Debug logs a debug message
func Debug(v ...interface{}) { emit(DEBUG, fmt.Sprint(v...)) }

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) { emit(DEBUG, fmt.Sprintf(format, v...)) }

// Info logs an info message
func Info(v ...interface{}) { emit(INFO, fmt.Sprint(v...)) }

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) { emit(INFO, fmt.Sprintf(format, v...)) }

// Warn logs a warning message
func Warn(v ...interface{}) { emit(WARN, fmt.Sprint(v...)) }

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) { emit(WARN, fmt.Sprintf(format, v...)) }

// Error logs an error message
func Error(v ...interface{}) { emit(ERROR, fmt.Sprint(v...)) }

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) { emit(ERROR, fmt.Sprintf(format, v...)) }

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	emit(ERROR, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	emit(ERROR, fmt.Sprintf(format, v...))
	os.Exit(1)
}
