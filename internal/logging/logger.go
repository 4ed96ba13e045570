// Package logging provides the zap setup shared by tempunit commands.
package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FuncLogger returns a logger tagged with the operation name, and the start
// time to hand to FuncExit.
func FuncLogger(logger *zap.Logger, funcName string) (*zap.Logger, time.Time) {
	start := time.Now()
	logger = logger.With(zap.String("location", funcName))
	logger.Debug(funcName+" started", zap.Time("start_time", start))
	return logger, start
}

// FuncExit logs the elapsed time since start at debug level.
func FuncExit(logger *zap.Logger, start time.Time) {
	logger.Debug("function exited", zap.Duration("elapsed", time.Since(start)))
}

// SetupLogger builds the command logger. Debug mode uses the development
// encoder at debug level; otherwise JSON at warn level. CLI output goes to
// stdout, so logs go to stderr in both modes.
func SetupLogger(debug bool) (*zap.Logger, zap.AtomicLevel, error) {
	var atom zap.AtomicLevel
	var config zap.Config

	if debug {
		atom = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		config = zap.NewDevelopmentConfig()
	} else {
		atom = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		config = zap.NewProductionConfig()
	}

	config.Level = atom
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	logger, err := config.Build()
	return logger, atom, err
}
