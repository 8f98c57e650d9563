// Package config loads configuration for sessionkit applications.
//
// It layers three sources, later ones winning: a YAML config file, a
// .env file, and process environment variables. The result is
// unmarshalled into the caller's config struct via mapstructure tags.
//
// Per-package Config structs (kvstore, scheduler, artifact, logger)
// follow the ApplyDefaults/Validate convention; Load only populates
// fields, callers apply defaults and validate afterwards.
package config
