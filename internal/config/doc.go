// Package config loads, normalizes, and validates cdgrab configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the CDGRAB_TARGET_DIR environment
// override. Every setting the orchestrator and CLI need lives on Config so the
// binaries directory, download target and logging knobs are discovered in one
// pass.
//
// A missing config file is not an error: the defaults describe a working
// setup.
package config
