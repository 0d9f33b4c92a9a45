package logger

import (
	"fmt"
	"runtime"
	"strings"
)

// LoggerWithCaller adds caller information to the logger
func LoggerWithCaller(skip int) Logger {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return GetLogger()
	}

	parts := strings.Split(file, "/")
	filename := parts[len(parts)-1]

	return GetLogger().WithField("caller", fmt.Sprintf("%s:%d", filename, line))
}

// LogRequest logs HTTP request information
func LogRequest(method, url string, statusCode int, duration float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration,
	}

	if statusCode >= 200 && statusCode < 300 {
		GetLogger().InfoWithFields("HTTP request completed", fields)
	} else if statusCode >= 400 && statusCode < 500 {
		GetLogger().WarnWithFields("HTTP request client error", fields)
	} else if statusCode >= 500 {
		GetLogger().ErrorWithFields("HTTP request server error", fields)
	}
}

// LogStrategy logs which extraction strategy in a fallback chain produced
// a value. Keeps the chain auditable.
func LogStrategy(concern, strategy string, found bool) {
	GetLogger().DebugWithFields("extraction strategy evaluated", map[string]interface{}{
		"concern":  concern,
		"strategy": strategy,
		"found":    found,
	})
}

// LogStateTransition logs a login state machine transition
func LogStateTransition(from, to string) {
	GetLogger().DebugWithFields("state transition", map[string]interface{}{
		"from": from,
		"to":   to,
	})
}
