package logging

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerKey struct{}

// Rotation controls how the log file is rotated by lumberjack.
// Zero MaxBackups keeps every rotated file.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
}

var defaultRotation = Rotation{MaxSizeMB: 500}

func NewContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey{}, logger)
}

func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return New(zap.DebugLevel, "", false)
}

// New creates a console logger, teed into a rotated file when logFileName is set.
func New(level zapcore.LevelEnabler, logFileName string, json bool) *zap.Logger {
	return NewWithRotation(level, logFileName, json, defaultRotation)
}

func NewWithRotation(level zapcore.LevelEnabler, logFileName string, json bool, rotation Rotation) *zap.Logger {
	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	consoleSyncer := zapcore.Lock(os.Stdout)
	var cores []zapcore.Core
	cores = append(cores, zapcore.NewCore(encoder, consoleSyncer, level))

	if logFileName != "" {
		if rotation.MaxSizeMB <= 0 {
			rotation.MaxSizeMB = defaultRotation.MaxSizeMB
		}
		fileLogger := &lumberjack.Logger{
			Filename:   logFileName,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     28,
			Compress:   true,
		}
		fs := zapcore.AddSync(fileLogger)
		cores = append(cores, zapcore.NewCore(encoder, fs, zap.DebugLevel))
	}

	return zap.New(zapcore.NewTee(cores...))
}
