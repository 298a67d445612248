package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation policy shared by the operational and event log files.
const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 7
)

// LoggerConfig selects the operational log level, encoding and destination.
type LoggerConfig struct {
	Level  string
	Format string
	// File rotates through lumberjack when set; stdout otherwise.
	File string
}

// NewLogger builds the process zap logger. The returned closer flushes and
// releases the log file.
func NewLogger(cfg LoggerConfig) (*zap.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(orDefault(cfg.Level, "info"))))
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}

	var sink io.Writer = os.Stdout
	var rotating *lumberjack.Logger
	if cfg.File != "" {
		rotating = RotatingFile(cfg.File)
		sink = rotating
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	var encoder zapcore.Encoder
	switch strings.ToLower(orDefault(cfg.Format, "console")) {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(sink), level)
	logger := zap.New(core, zap.AddCaller())
	closer := func() error {
		_ = logger.Sync()
		if rotating != nil {
			return rotating.Close()
		}
		return nil
	}
	return logger, closer, nil
}

// RotatingFile returns a size-rotated writer for path.
func RotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   false,
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
