// Package statestore gives every other package in the coordinator safe,
// crash-tolerant persistence against the shared `.omc/state/` directory: path
// resolution with strict session isolation, atomic write-temp-then-rename
// for JSON documents, a cross-process file-lock protocol, and a
// debounced/merge-aware writer for documents with concurrent producers
// (used by pkg/tracker). No goroutine or timer here outlives the process
// that creates it — see DebouncedMergeWriter's doc comment.
package statestore
