// Package logger provides structured logging for the login engine.
//
// It wraps the zerolog library to provide a clean API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - Optional file output
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "instaapi/pkg/logger"
//
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	}
//	err := logger.Initialize(cfg)
//
//	logger.Info("login started")
//	logger.WithField("username", "john_doe").Info("session validated")
//	logger.WithError(err).Error("key fetch failed")
package logger
