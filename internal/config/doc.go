// Package config loads the gosession command configuration from YAML and
// GOSESSION_* environment variables.
package config
