package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockHeld means another process holds the lock and the wait
// expired.
var ErrLockHeld = errors.New("lock held by another process")

// lockRetryInterval paces the polling TryLockContext does while the
// lock is contested.
const lockRetryInterval = 100 * time.Millisecond

// AcquireLock takes an exclusive advisory lock on path, creating the
// file and its directory if needed. It waits up to timeout for another
// holder to release. The caller unlocks via the returned *flock.Flock.
func AcquireLock(path string, timeout time.Duration) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(path)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrLockHeld
	}
	return fl, nil
}
