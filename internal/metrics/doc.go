// Package metrics holds the campaign metrics: boot and connection
// counters, per-verdict counts and rates, and the critical-failure series
// (time to first critical failure, time between failures, MTBF).
//
// The engine owns a single Campaign and passes it by reference to the
// components that update it. Rendering is available as a generic map, JSON
// or YAML.
package metrics
