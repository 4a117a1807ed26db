// Package config defines the application configuration structures and the
// loader that populates them from environment variables (INKWELL_ prefix)
// and an optional YAML config file, with validation of required settings.
package config
