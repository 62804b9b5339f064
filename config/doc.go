// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, breaker thresholds, time limits, and per-operation
// overrides.
package config
