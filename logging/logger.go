package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Environment overrides.
const (
	EnvLevel  = "METAOVERLAY_LOG_LEVEL"
	EnvCaller = "METAOVERLAY_LOG_CALLER"
	EnvDebug  = "METAOVERLAY_DEBUG"
)

var (
	mu      sync.Mutex
	root    = logrus.New()
	loggers = make(map[string]*logrus.Entry)
	file    *fileWriter
)

func init() {
	apply(Options{})
}

// Configure applies opts to every logger, including ones already handed
// out by NewLogger.
func Configure(opts Options) {
	mu.Lock()
	defer mu.Unlock()
	apply(opts)
}

// NewLogger returns the logger for a component. Entries carry a
// "component" field; loggers are cached per component.
func NewLogger(component string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}
	entry := root.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Root exposes the shared logrus logger for libraries that want a
// *logrus.Logger.
func Root() *logrus.Logger {
	return root
}

func apply(opts Options) {
	levelStr := "info"
	if env := os.Getenv(EnvLevel); env != "" {
		levelStr = env
	} else if opts.Level != "" {
		levelStr = opts.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	root.SetLevel(level)

	root.SetReportCaller(opts.ReportCaller || os.Getenv(EnvCaller) == "true")

	switch opts.Format {
	case "json":
		root.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		root.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		root.SetFormatter(&TextFormatter{})
	}

	if file != nil {
		file.Close()
		file = nil
	}

	var writers []io.Writer
	if opts.File != "" {
		file = newFileWriter(expandPath(opts.File))
		writers = append(writers, file)
	}
	if toStderr(opts.Stderr, level) {
		writers = append(writers, GetGlobalOutput())
	}

	switch len(writers) {
	case 0:
		root.SetOutput(io.Discard)
	case 1:
		root.SetOutput(writers[0])
	default:
		root.SetOutput(io.MultiWriter(writers...))
	}
}

func toStderr(mode string, level logrus.Level) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	isDebug := os.Getenv(EnvDebug) == "1" || level >= logrus.DebugLevel
	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return isDebug || !isInteractive
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
