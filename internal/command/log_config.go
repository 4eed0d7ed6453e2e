package command

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/vlist/internal/config"
	"github.com/joeycumines/vlist/internal/scripting"
)

// logConfig holds resolved logging configuration for commands that drive a
// list.
type logConfig struct {
	level      slog.Level
	logFile    io.WriteCloser // nil if no file logging
	bufferSize int
}

// resolveLogConfig resolves log configuration from flags and config defaults.
// Flag values take precedence; config values are used when flags have their
// zero/default value. The caller must Close() the returned logConfig.logFile
// when done (if non-nil).
func resolveLogConfig(flagPath, flagLevel string, flagBufferSize int, cfg *config.Config) (logConfig, error) {
	schema := config.DefaultSchema()
	var lc logConfig

	// Helper to safely resolve config values when cfg may be nil.
	resolveStr := func(key string) string {
		if cfg == nil {
			return ""
		}
		return schema.Resolve(cfg, key)
	}
	resolveInt := func(key string) int {
		if cfg == nil {
			return 0
		}
		n, err := schema.ResolveInt(cfg, key)
		if err != nil {
			return 0
		}
		return n
	}

	// Resolve log level: flag → config → "info".
	levelStr := flagLevel
	if levelStr == "" || levelStr == "info" {
		if v := resolveStr("log.level"); v != "" {
			levelStr = v
		}
	}
	switch strings.ToLower(levelStr) {
	case "debug":
		lc.level = slog.LevelDebug
	case "info", "":
		lc.level = slog.LevelInfo
	case "warn":
		lc.level = slog.LevelWarn
	case "error":
		lc.level = slog.LevelError
	default:
		return lc, fmt.Errorf("invalid log level: %s", levelStr)
	}

	// Resolve buffer size: flag → config → 1000.
	lc.bufferSize = flagBufferSize
	if lc.bufferSize <= 0 {
		lc.bufferSize = resolveInt("log.buffer-size")
		if lc.bufferSize <= 0 {
			lc.bufferSize = 1000
		}
	}

	// Resolve log path: flag → config → "".
	logPath := flagPath
	if logPath == "" {
		logPath = cfg.ResolvePath(resolveStr("log.file"))
	}

	if logPath != "" {
		// Resolve rotation settings from config.
		maxSizeMB := resolveInt("log.max-size-mb")
		if maxSizeMB <= 0 {
			maxSizeMB = 10
		}
		// Zero maxFiles is valid: the file is truncated on rotate.
		maxFiles := resolveInt("log.max-files")
		if maxFiles < 0 {
			maxFiles = 5
		}

		w, err := scripting.NewRotatingFileWriter(logPath, maxSizeMB, maxFiles)
		if err != nil {
			return lc, fmt.Errorf("failed to open log file %s: %w", logPath, err)
		}
		lc.logFile = w
	}

	return lc, nil
}

// buffer builds the in-memory log ring for lc. When a log file is open,
// every record the ring accepts is also written to it as JSON.
func (lc logConfig) buffer() *scripting.LogBuffer {
	var tee slog.Handler
	if lc.logFile != nil {
		tee = slog.NewJSONHandler(lc.logFile, &slog.HandlerOptions{Level: lc.level})
	}
	return scripting.NewLogBuffer(lc.bufferSize, lc.level, tee)
}

// close releases the log file, if any.
func (lc logConfig) close() {
	if lc.logFile != nil {
		_ = lc.logFile.Close()
	}
}

// logFlags are the logging flags shared by every list-driving command.
type logFlags struct {
	file       string
	level      string
	bufferSize int
}

func (f *logFlags) setup(fs *flag.FlagSet) {
	fs.StringVar(&f.file, "log-file", "", "Write JSON logs to this file (rotated by size)")
	fs.StringVar(&f.level, "log-level", "info", "Log level: debug, info, warn, error")
	fs.IntVar(&f.bufferSize, "log-buffer", 0, "In-memory log entries kept (0 uses log.buffer-size)")
}

func (f *logFlags) resolve(cfg *config.Config) (logConfig, error) {
	return resolveLogConfig(f.file, f.level, f.bufferSize, cfg)
}
