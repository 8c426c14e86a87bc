package statestore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/log"
)

// AtomicWriteJSON marshals v and replaces path with it via write-temp-then-
// rename, which is durable enough for crash safety on a local filesystem
// (the rename is atomic within one directory on every platform this repo
// targets).
func AtomicWriteJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"-tmp-"+strconv.Itoa(os.Getpid()))
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

// ReadJSON reads path into v. A missing file is ErrNotFound (callers treat
// it as an empty default, not a hard failure). A parse failure is
// ErrCorrupt, logged here and left for the caller to substitute a default.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errs.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.WithComponent("statestore").Warn().Err(err).Str("path", path).Msg("corrupt state document")
		return errs.ErrCorrupt
	}
	return nil
}
