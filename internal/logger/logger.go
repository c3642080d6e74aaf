package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logFile     *os.File
	logDir      string
	currentDay  string
	logMu       sync.Mutex
	fileLogging bool

	base = newBase(os.Stdout)
)

// dailyWriter forwards writes to the current day's log file.
type dailyWriter struct{}

func (dailyWriter) Write(p []byte) (int, error) {
	logMu.Lock()
	defer logMu.Unlock()
	if !fileLogging {
		return len(p), nil
	}
	if err := rotateLocked(time.Now()); err != nil || logFile == nil {
		return len(p), nil
	}
	return logFile.Write(p)
}

func newBase(console io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: console, TimeFormat: "2006/01/02 15:04:05"}
	out := zerolog.MultiLevelWriter(cw, dailyWriter{})
	return zerolog.New(out).With().Timestamp().Logger()
}

// Init enables file logging under dir/logs with one file per day.
func Init(dir string) error {
	if dir == "" {
		return nil
	}
	// If caller passes /data, write logs to /data/logs.
	// If caller already passes .../logs, keep it as-is.
	resolved := dir
	if path.Base(filepath.ToSlash(dir)) != "logs" {
		resolved = filepath.Join(dir, "logs")
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return err
	}

	logMu.Lock()
	defer logMu.Unlock()
	logDir = resolved
	fileLogging = true
	if err := rotateLocked(time.Now()); err != nil {
		fileLogging = false
		return err
	}
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	fileLogging = false
}

// SetLevel sets the global minimum level ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// SetOutput replaces the console destination. Tests use it to silence or capture output.
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	base = newBase(w)
}

// L returns the structured logger.
func L() *zerolog.Logger {
	logMu.Lock()
	l := base
	logMu.Unlock()
	return &l
}

// With returns a child logger tagged with a component name.
func With(component string) zerolog.Logger {
	return L().With().Str("component", component).Logger()
}

func Debug(format string, args ...interface{}) {
	L().Debug().Msgf(format, args...)
}

func Info(format string, args ...interface{}) {
	L().Info().Msgf(format, args...)
}

func Warn(format string, args ...interface{}) {
	L().Warn().Msgf(format, args...)
}

func Error(format string, args ...interface{}) {
	L().Error().Msgf(format, args...)
}

func rotateLocked(t time.Time) error {
	if logDir == "" {
		return nil
	}
	day := t.Format("2006-01-02")
	if logFile != nil && currentDay == day {
		return nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	filePath := filepath.Join(logDir, day+".log")
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	logFile = f
	currentDay = day
	return nil
}
