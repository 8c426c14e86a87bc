// Package metrics registers the Prometheus collectors the coordinator
// updates as it runs: swarm claim counters, mode transition counters, and
// tracker/lock gauges. The enforcer decision, task total and mode-active
// collectors are registered as well, but no package updates them. Metrics
// are always on — they are an ambient concern, not a feature the spec's
// non-goals exclude. Handler() exposes the registry over HTTP, but no
// subcommand of cmd/omc-hook serves it; individual hook invocations only
// increment counters, they never start an HTTP server themselves.
package metrics
