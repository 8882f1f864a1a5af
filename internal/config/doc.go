// Package config loads daemon configuration from environment variables.
package config
