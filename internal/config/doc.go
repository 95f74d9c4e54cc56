// Package config loads, normalizes, and validates courtside configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COURTSIDE_LLM_API_KEY and OPENROUTER_API_KEY. Config centralizes every knob
// the CLI and workflow need; RunConfig is the per-invocation view derived from
// it and overridden by command flags.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical role and language lists, and clear validation
// errors.
package config
