// Package util holds small helpers shared by the queue, model and core
// packages.
package util

import (
	"context"
	"os"
	"time"
)

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RemoveFile deletes a temporary file, ignoring empty paths and errors.
func RemoveFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
