package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/omc-dev/coordinator/pkg/log"
)

// readStdin decodes a single JSON object from stdin into v.
func readStdin(v any) error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// writeStdout encodes v as JSON to stdout.
func writeStdout(v any) error {
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(v)
}

// runHook decodes stdin into in, calls fn, and writes fn's result to
// stdout. Per the hook propagation policy, a hook must never fail the
// host process: any error from decoding or fn is logged to stderr and
// degrades to the passed fallback decision (always {"continue": true}),
// written to stdout, and the command still exits 0.
func runHook[In any, Out any](component string, fallback Out, fn func(In) (Out, error)) error {
	var in In
	if err := readStdin(&in); err != nil {
		log.WithComponent(component).Error().Err(err).Msg("failed to decode hook input")
		return writeStdout(fallback)
	}

	out, err := fn(in)
	if err != nil {
		log.WithComponent(component).Error().Err(err).Msg("hook handler failed")
		return writeStdout(fallback)
	}
	return writeStdout(out)
}
