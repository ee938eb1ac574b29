// Package logging provides component loggers for the verifier built on
// charmbracelet/log, with a rotating file sink, an optional console sink,
// and a subscription feed the TUI uses to show recent messages.
//
// Basic usage:
//
//	if err := logging.Init(logging.DefaultConfig()); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("engine")
//	logger.Info("run started", "manifest", path)
//
// Components that accept a *Logger explicitly can be given one built with New,
// which bypasses the global state entirely.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// Components maps component names to level overrides.
	Components map[string]string

	// ConsoleLevel enables stderr output at the given level. Empty disables it.
	ConsoleLevel string

	// TUIMode suppresses console output and keeps recent entries in a ring buffer.
	TUIMode bool
}

// Entry is a log record delivered to subscribers.
type Entry struct {
	Time      time.Time
	Level     Level
	Component string
	Message   string
}

// Logger is a component logger. The zero value is not usable; obtain one
// from Get or New.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
	broadcast bool
}

// New returns a standalone logger writing to w. It does not take part in
// the global subscription feed.
func New(w io.Writer, component string, level Level) *Logger {
	return &Logger{
		file: log.NewWithOptions(w, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
		component: component,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(io.Discard, "", LevelError)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, msg, args...)
}

// With returns a logger that adds the given key/value pairs to every message.
func (l *Logger) With(args ...any) *Logger {
	out := &Logger{
		file:      l.file.With(args...),
		component: l.component,
		broadcast: l.broadcast,
	}
	if l.console != nil {
		out.console = l.console.With(args...)
	}
	return out
}

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) log(level Level, msg string, args ...any) {
	write(l.file, level, msg, args...)
	if l.console != nil {
		write(l.console, level, msg, args...)
	}
	if l.broadcast {
		global.publish(Entry{Time: time.Now(), Level: level, Component: l.component, Message: msg})
	}
}

func write(logger *log.Logger, level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelInfo:
		logger.Info(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	}
}

// state is the process-wide logging configuration behind Get.
type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      *RotatingWriter
	level       Level
	components  map[string]Level
	loggers     map[string]*Logger
	subscribers map[chan Entry]struct{}

	console      bool
	consoleLevel Level
	buffer       *Buffer
}

var global = &state{
	loggers:     make(map[string]*Logger),
	components:  make(map[string]Level),
	subscribers: make(map[chan Entry]struct{}),
}

// Init configures the global logging state. Loggers obtained from Get before
// Init discard their output; they are rebuilt in place by Init.
func Init(cfg Config) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.initialized && global.writer != nil {
		if err := global.writer.Close(); err != nil {
			return fmt.Errorf("closing existing writer: %w", err)
		}
		global.writer = nil
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	console := false
	var consoleLevel Level
	if cfg.ConsoleLevel != "" && !cfg.TUIMode {
		if consoleLevel, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
		console = true
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.level = level
	global.components = components
	global.console = console
	global.consoleLevel = consoleLevel
	global.writer = writer
	global.buffer = nil
	if cfg.TUIMode {
		global.buffer = NewBuffer(DefaultBufferSize)
	}
	global.initialized = true

	for component, logger := range global.loggers {
		*logger = *global.build(component)
	}
	return nil
}

// Get returns the shared logger for a component.
func Get(component string) *Logger {
	global.mu.RLock()
	logger, ok := global.loggers[component]
	global.mu.RUnlock()
	if ok {
		return logger
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	if logger, ok := global.loggers[component]; ok {
		return logger
	}
	logger = global.build(component)
	global.loggers[component] = logger
	return logger
}

// build creates a logger for component. Callers hold s.mu.
func (s *state) build(component string) *Logger {
	level := s.level
	if lvl, ok := s.components[component]; ok {
		level = lvl
	}

	if !s.initialized {
		l := New(io.Discard, component, level)
		l.broadcast = true
		return l
	}

	l := New(s.writer, component, level)
	l.broadcast = true
	if s.console {
		l.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           s.consoleLevel.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			Prefix:          component,
		})
	}
	return l
}

// Close flushes and closes the log file and ends every subscription.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.initialized {
		return nil
	}

	for ch := range global.subscribers {
		close(ch)
		delete(global.subscribers, ch)
	}

	var err error
	if global.writer != nil {
		err = global.writer.Close()
		global.writer = nil
	}

	global.initialized = false
	global.buffer = nil
	for component, logger := range global.loggers {
		*logger = *global.build(component)
	}
	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// Subscribe returns a channel receiving every message logged through Get loggers.
// Slow subscribers miss messages rather than blocking the logger.
func Subscribe() <-chan Entry {
	global.mu.Lock()
	defer global.mu.Unlock()

	ch := make(chan Entry, 100)
	global.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription. The channel is not closed.
func Unsubscribe(ch <-chan Entry) {
	global.mu.Lock()
	defer global.mu.Unlock()

	for sub := range global.subscribers {
		if sub == ch {
			delete(global.subscribers, sub)
			return
		}
	}
}

func (s *state) publish(e Entry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.buffer != nil {
		s.buffer.Add(e)
	}
	for ch := range s.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// RecentEntries returns the ring buffer kept in TUI mode, or nil.
func RecentEntries() *Buffer {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.buffer
}

// DefaultLogPath returns $XDG_STATE_HOME/verifier/verifier.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "verifier", "verifier.log")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
