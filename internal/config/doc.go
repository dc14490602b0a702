// Package config defines the settings of the buzzer binaries and provides
// helpers to load, validate and save them as YAML or TOML.
//
// Defaults are applied by Validate, so a minimal file only needs to override
// what differs from the demo deployment.
package config
