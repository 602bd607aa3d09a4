// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON
// (or text) logging with configurable log levels, plus helpers for capturing and
// asserting on log output in tests.
package logger
