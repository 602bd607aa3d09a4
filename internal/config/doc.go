// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files, command-line flags).
// It provides type-safe access to pipeline, logging and status-server
// settings while keeping configuration details separate from the workers.
package config
