// Package hooks defines the abstract hook input/output types the host CLI
// marshals to and from JSON on stdin/stdout. It is the only place that
// touches the host's wire format — every other package works in plain Go
// structs.
package hooks
