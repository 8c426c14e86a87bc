// Package tracker records the full lifecycle of every spawned subagent and
// derives real-time dashboards, bottleneck reports, and interventions from
// it. The tracking document is the only thing written through the
// debounced/merge protocol; a parallel append-only replay stream per
// session supports post-hoc analysis including cycle detection.
package tracker
