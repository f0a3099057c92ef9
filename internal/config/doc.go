// Package config loads, normalizes, and validates slidereel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks such as SLIDEREEL_DATABASE_URL and SLIDEREEL_SERVICE_KEY. The
// Config type centralizes every knob the daemon and CLI need so the artifact
// store root, database credentials and external tool invocations are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
