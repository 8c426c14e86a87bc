package statestore

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/log"
	"github.com/omc-dev/coordinator/pkg/metrics"
)

const (
	lockStaleAfter = 5 * time.Second
	lockTimeout    = 5 * time.Second
	lockRetryEvery = 50 * time.Millisecond
)

// WithFileLock serializes fn across processes using an O_EXCL lock file
// named "<cwd>/.omc/state/<name>.lock" containing "<pid>:<ms-timestamp>".
// It retries every ~50ms, paced by a rate.Limiter rather than a bare
// time.Sleep loop, until either the lock is acquired or lockTimeout (5s)
// elapses, at which point it returns errs.ErrLockContention. Release is
// best-effort: unlink failures are ignored.
func WithFileLock(cwd, name string, fn func() error) error {
	lockPath := DocPath(cwd, name+".lock")
	if err := os.MkdirAll(StateDir(cwd), 0o755); err != nil {
		return err
	}

	timer := metrics.NewTimer()
	deadline := time.Now().Add(lockTimeout)
	limiter := rate.NewLimiter(rate.Every(lockRetryEvery), 1)

	for {
		acquired, err := tryAcquire(lockPath)
		if err != nil {
			return err
		}
		if acquired {
			timer.ObserveDuration(metrics.LockWaitDuration)
			defer os.Remove(lockPath)
			return fn()
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			metrics.LockContentionTotal.Inc()
			return errs.ErrLockContention
		}

		ctx, cancel := context.WithTimeout(context.Background(), remaining)
		waitErr := limiter.Wait(ctx)
		cancel()
		if waitErr != nil {
			metrics.LockContentionTotal.Inc()
			return errs.ErrLockContention
		}
	}
}

// tryAcquire attempts to create the lock file exclusively. If it already
// exists and is stale (unparseable contents, timestamp older than 5s, or
// owning PID no longer alive) it removes it and reports not-acquired so the
// caller's retry loop takes it on the next pass, rather than acquiring in
// the same call (keeps the acquire path single-purpose and easy to reason
// about under concurrent removers).
func tryAcquire(lockPath string) (bool, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		defer f.Close()
		content := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixMilli())
		if _, werr := f.WriteString(content); werr != nil {
			return false, werr
		}
		return true, nil
	}
	if !os.IsExist(err) {
		return false, err
	}

	data, rerr := os.ReadFile(lockPath)
	if rerr != nil {
		// Lock disappeared between the failed create and this read; treat
		// as contended and let the caller retry.
		return false, nil
	}

	pid, ms, ok := parseLock(string(data))
	stale := !ok || time.Since(time.UnixMilli(ms)) > lockStaleAfter || !isProcessAlive(pid)
	if stale {
		log.WithComponent("statestore").Debug().Str("lock", lockPath).Msg("removing stale lock")
		_ = os.Remove(lockPath)
	}
	return false, nil
}

func parseLock(content string) (pid int, ms int64, ok bool) {
	parts := strings.SplitN(content, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	p, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return p, m, true
}
