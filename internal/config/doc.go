// Package config loads, normalizes, and validates the recap configuration
// from a TOML file with sane defaults for every field.
package config
