// Package metrics exposes live session statistics to Prometheus.
package metrics
