package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withStdin temporarily redirects os.Stdin to data and restores it on return.
func withStdin(t *testing.T, data string) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	original := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = original })
}

// withStdout temporarily redirects os.Stdout and returns a function that
// yields everything written to it.
func withStdout(t *testing.T) func() string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	original := os.Stdout
	os.Stdout = w
	t.Cleanup(func() { os.Stdout = original })

	return func() string {
		os.Stdout = original
		w.Close()
		out, _ := io.ReadAll(r)
		return string(out)
	}
}

type roundTripIn struct {
	Name string `json:"name"`
}

type roundTripOut struct {
	Greeting string `json:"greeting"`
}

func TestRunHookDecodesAndEncodes(t *testing.T) {
	withStdin(t, `{"name":"ralph"}`)
	collect := withStdout(t)

	err := runHook("test", roundTripOut{}, func(in roundTripIn) (roundTripOut, error) {
		return roundTripOut{Greeting: "hello " + in.Name}, nil
	})
	require.NoError(t, err)

	var out roundTripOut
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(collect())), &out))
	assert.Equal(t, "hello ralph", out.Greeting)
}

func TestRunHookFallsBackToFallbackOnHandlerError(t *testing.T) {
	withStdin(t, `{"name":"ralph"}`)
	collect := withStdout(t)

	err := runHook("test", roundTripOut{Greeting: "fallback"}, func(in roundTripIn) (roundTripOut, error) {
		return roundTripOut{}, assertErr
	})
	require.NoError(t, err) // hooks never fail the host process

	var out roundTripOut
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(collect())), &out))
	assert.Equal(t, "fallback", out.Greeting)
}

func TestRunHookFallsBackOnMalformedInput(t *testing.T) {
	withStdin(t, `{not json`)
	collect := withStdout(t)

	err := runHook("test", roundTripOut{Greeting: "fallback"}, func(in roundTripIn) (roundTripOut, error) {
		t.Fatal("handler should not run on decode failure")
		return roundTripOut{}, nil
	})
	require.NoError(t, err)

	var out roundTripOut
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(collect())), &out))
	assert.Equal(t, "fallback", out.Greeting)
}

var assertErr = errDummy{}

type errDummy struct{}

func (errDummy) Error() string { return "boom" }
