// Package config loads and validates lanpulse configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// LANPULSE_* environment variable overrides. Validation runs after all
// layers are applied, so a bad file cannot be papered over by defaults.
package config
