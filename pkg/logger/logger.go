package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields type is an alias for logrus.Fields
type Fields = logrus.Fields

// Logger is a wrapper around logrus.Logger that tags entries with a module name
type Logger struct {
	*logrus.Logger
	module string
}

var (
	mu           sync.Mutex
	globalLogger *Logger
)

// Config for the logger
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Init initializes the global logger. Entries go to stderr and, when
// config.File is set, to a rotated log file as well.
func Init(config Config) error {
	l, err := build(config, os.Stderr)
	if err != nil {
		return err
	}

	mu.Lock()
	globalLogger = &Logger{Logger: l}
	mu.Unlock()

	entry := l.WithFields(Fields{
		"level":  l.GetLevel().String(),
		"format": formatName(config.Format),
	})
	if config.File != "" {
		entry = entry.WithField("file_path", config.File)
	}
	entry.Debug("Logger initialized")
	return nil
}

func build(config Config, stderr io.Writer) (*logrus.Logger, error) {
	levelName := config.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	l := logrus.New()
	l.SetLevel(level)

	switch formatName(config.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			CallerPrettyfier: callerPrettyfier,
			TimestampFormat:  "2006-01-02 15:04:05",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			CallerPrettyfier:       callerPrettyfier,
			DisableSorting:         true,
			DisableLevelTruncation: true,
			PadLevelText:           true,
			TimestampFormat:        "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("invalid log format %q", config.Format)
	}

	outputs := []io.Writer{stderr}
	if config.File != "" {
		if err := os.MkdirAll(filepath.Dir(config.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		outputs = append(outputs, &lumberjack.Logger{
			Filename:   config.File,
			MaxSize:    config.MaxSize,
			MaxAge:     config.MaxAge,
			MaxBackups: config.MaxBackups,
			Compress:   config.Compress,
		})
	}
	l.SetOutput(io.MultiWriter(outputs...))
	l.SetReportCaller(level >= logrus.DebugLevel)

	return l, nil
}

func formatName(f string) string {
	if f == "" {
		return "text"
	}
	return strings.ToLower(f)
}

// callerPrettyfier reports the first frame outside of logrus and this package
func callerPrettyfier(f *runtime.Frame) (string, string) {
	pcs := make([]uintptr, 15)
	n := runtime.Callers(4, pcs)
	if n == 0 {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "pkg/logger") &&
			!strings.Contains(frame.File, "sirupsen/logrus") {
			return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		}
		if !more {
			break
		}
	}
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}

// NewLogger returns a logger for module. If Init was never called a default
// info-level text logger writing to stderr is set up.
func NewLogger(module string) *Logger {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		l, _ := build(Config{}, os.Stderr)
		globalLogger = &Logger{Logger: l}
	}
	return &Logger{Logger: globalLogger.Logger, module: module}
}

// New builds a standalone logger writing to w. Mostly useful in tests.
func New(w io.Writer, module string) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return &Logger{Logger: l, module: module}
}

// WithFields returns an entry carrying fields and the module name
func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	f := Fields{}
	for k, v := range fields {
		f[k] = v
	}
	if l.module != "" {
		f["module"] = l.module
	}
	return l.Logger.WithFields(f)
}

// WithField returns an entry carrying a single field and the module name
func (l *Logger) WithField(key string, value any) *logrus.Entry {
	return l.WithFields(Fields{key: value})
}

// WithError returns an entry carrying err and the module name
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.WithFields(Fields{logrus.ErrorKey: err})
}

func (l *Logger) Debug(args ...any) { l.WithFields(nil).Debug(args...) }

func (l *Logger) Debugf(format string, args ...any) { l.WithFields(nil).Debugf(format, args...) }

func (l *Logger) Info(args ...any) { l.WithFields(nil).Info(args...) }

func (l *Logger) Infof(format string, args ...any) { l.WithFields(nil).Infof(format, args...) }

func (l *Logger) Warn(args ...any) { l.WithFields(nil).Warn(args...) }

func (l *Logger) Warnf(format string, args ...any) { l.WithFields(nil).Warnf(format, args...) }

func (l *Logger) Error(args ...any) { l.WithFields(nil).Error(args...) }

func (l *Logger) Errorf(format string, args ...any) { l.WithFields(nil).Errorf(format, args...) }
