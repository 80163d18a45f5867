// Package config loads tracker configuration from environment variables.
package config
