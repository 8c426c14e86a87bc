// Package log provides the process-wide structured logger used by every
// hook invocation. It wraps zerolog with a small set of context-logger
// helpers (WithSession, WithAgentID, WithMode, WithTaskID) so that a single
// hook's log lines carry the session/agent/mode they belong to without every
// caller repeating the same .Str() calls.
package log
