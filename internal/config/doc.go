// Package config loads the livewave client configuration.
//
// Values come from an optional YAML file layered over Default; the API
// key falls back to the GEMINI_API_KEY environment variable and command
// line flags override both.
package config
