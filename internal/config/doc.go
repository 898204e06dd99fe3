// Package config loads, normalizes, and validates Gantry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need: browser backend endpoint and capacity, pipeline worker
// and retry policy, per-stage automation commands, and notification settings.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
