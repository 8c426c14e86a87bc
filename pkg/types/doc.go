// Package types defines the coordinator's domain model: pool tasks and
// heartbeats, the per-mode state documents (Ralph, Ultrawork, Autopilot,
// UltraQA, verification), and the subagent tracker's records and replay
// events. Every exported struct here is a plain value type; apart from
// ModeCommon.Extra's `json:"-"` they carry no JSON tags, so documents use
// the Go field names as keys. Persistence and
// locking live in pkg/statestore and pkg/swarm, not here.
package types
