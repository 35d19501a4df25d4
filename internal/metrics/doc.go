// Package metrics defines the Prometheus collectors used across the
// application. Collectors are registered with promauto at package init.
package metrics
