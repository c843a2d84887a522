// Package config loads, normalizes, and validates tinywii configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the TINYWII_MOUNT_POINT
// environment fallback. The Config type centralizes every knob the CLI and
// the TUI need so the drive location, pool sizes, and transfer options are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
