// Package config loads, normalizes, and validates the TOML configuration.
// Policy constants observed in the field (scoring tiers, minimum title
// length, art-fetch timeout) live here so they stay tunable.
package config
