// Package config loads, normalizes, and validates the TOML configuration
// for vidstitch.
package config
